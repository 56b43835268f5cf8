// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident parses and canonicalizes patent identifiers.
// Implements: prd001-extraction (R2: canonicalization, variant preference);
//
//	docs/ARCHITECTURE § Identifiers.
package ident

import (
	"regexp"
	"strings"
)

// idPattern matches identifier-shaped tokens: a two-letter jurisdiction, a
// numeric body, and an optional kind code ("US7654321", "US7654321B2",
// "US20230012345A1", "EP1234567A1").
var idPattern = regexp.MustCompile(`^([A-Z]{2})(\d{4,12})([A-Z]\d{0,2})?$`)

// ID is a parsed patent identifier.
type ID struct {
	// Country is the two-letter jurisdiction prefix (e.g. "US").
	Country string

	// Number is the numeric body as observed, leading zeros included.
	Number string

	// Kind is the optional kind-code suffix (e.g. "B2"), empty when absent.
	Kind string
}

// Parse interprets a raw token as a patent identifier. It strips surrounding
// whitespace and an optional jurisdiction dash ("US-7654321-B2" forms appear
// in link hrefs). The second return value is false when the token does not
// match the identifier shape.
func Parse(raw string) (ID, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	raw = strings.ReplaceAll(raw, "-", "")

	m := idPattern.FindStringSubmatch(raw)
	if m == nil {
		return ID{}, false
	}
	return ID{Country: m[1], Number: m[2], Kind: m[3]}, true
}

// String returns the identifier in its canonical printed form.
func (id ID) String() string {
	return id.Country + id.Number + id.Kind
}

// Key returns the family key shared by all kind-code variants of the same
// patent: jurisdiction plus the number with leading zeros removed.
func (id ID) Key() string {
	num := strings.TrimLeft(id.Number, "0")
	if num == "" {
		num = "0"
	}
	return id.Country + num
}

// SameFamily reports whether a and b are variants of the same patent.
func SameFamily(a, b ID) bool {
	return a.Key() == b.Key()
}

// KindOrder maps a kind code to its ordinal in the document-grant
// progression. Higher ordinals win variant selection. The rule is a value
// rather than a constant so callers can substitute jurisdiction-specific
// orderings.
type KindOrder func(kind string) int

// DefaultKindOrder ranks kind codes by grant stage: the letter dominates
// (A application < B grant < C correction ...), the numeric suffix breaks
// ties within a letter. An absent kind code ranks below every explicit one.
func DefaultKindOrder(kind string) int {
	if kind == "" {
		return 0
	}
	n := 0
	for _, r := range kind[1:] {
		n = n*10 + int(r-'0')
	}
	return int(kind[0]-'A'+1)*100 + n
}

// Preferred selects the variant to keep among identifiers of one family:
// highest kind-code ordinal wins, exact ordinal ties go to the
// lexicographically greatest kind suffix. Deterministic and pure; the result
// does not depend on input order.
func Preferred(variants []ID, order KindOrder) ID {
	if order == nil {
		order = DefaultKindOrder
	}
	best := variants[0]
	for _, v := range variants[1:] {
		bo, vo := order(best.Kind), order(v.Kind)
		switch {
		case vo > bo:
			best = v
		case vo == bo && v.Kind > best.Kind:
			best = v
		}
	}
	return best
}
