// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ident

// AddResult classifies the effect of adding an identifier to a Set.
type AddResult int

const (
	// Novel means the identifier opened a new patent family.
	Novel AddResult = iota

	// Replaced means the identifier superseded a lower-ranked variant of a
	// known family; the displaced variant moves to the discard list.
	Replaced

	// Duplicate means a variant of equal or higher rank was already present;
	// the identifier moves to the discard list.
	Duplicate
)

// Set is an ordered, family-deduplicated collection of identifiers. Order
// reflects the order families were first observed; variant replacement keeps
// the family's original position. Discarded variants are recorded and never
// downloaded.
type Set struct {
	order     KindOrder
	positions map[string]int
	ids       []ID
	discarded []ID
}

// NewSet creates an empty set using the given variant-preference rule
// (DefaultKindOrder when nil).
func NewSet(order KindOrder) *Set {
	if order == nil {
		order = DefaultKindOrder
	}
	return &Set{order: order, positions: make(map[string]int)}
}

// Add inserts an identifier, reconciling kind-code variants.
func (s *Set) Add(id ID) AddResult {
	pos, seen := s.positions[id.Key()]
	if !seen {
		s.positions[id.Key()] = len(s.ids)
		s.ids = append(s.ids, id)
		return Novel
	}

	kept := Preferred([]ID{s.ids[pos], id}, s.order)
	if kept == s.ids[pos] {
		s.discarded = append(s.discarded, id)
		return Duplicate
	}
	s.discarded = append(s.discarded, s.ids[pos])
	s.ids[pos] = id
	return Replaced
}

// Contains reports whether a variant of id's family is already present.
func (s *Set) Contains(id ID) bool {
	_, ok := s.positions[id.Key()]
	return ok
}

// IDs returns the kept identifiers in first-observed family order.
func (s *Set) IDs() []ID {
	out := make([]ID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Discarded returns the variants rejected during deduplication.
func (s *Set) Discarded() []ID {
	out := make([]ID, len(s.discarded))
	copy(out, s.discarded)
	return out
}

// Len returns the number of kept identifiers.
func (s *Set) Len() int {
	return len(s.ids)
}
