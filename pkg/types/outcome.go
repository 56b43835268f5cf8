// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the patent-harvester pipeline.
// Implements: prd001-extraction (ResultSet ordering);
//
//	prd002-retrieval (Outcome, RunSummary);
//	docs/ARCHITECTURE § Data Structures.
package types

import "time"

// Status is the terminal state of one document retrieval.
type Status string

const (
	// StatusPDFSaved means the preferred PDF artifact was written.
	StatusPDFSaved Status = "pdf-saved"

	// StatusHTMLSaved means the HTML fallback artifact was written.
	StatusHTMLSaved Status = "html-saved"

	// StatusNotFound means no document exists for the identifier. Permanent,
	// never retried.
	StatusNotFound Status = "not-found"

	// StatusFailed means the retry budget was exhausted or a resource-level
	// failure cut the run short.
	StatusFailed Status = "failed"
)

// Saved reports whether the status represents a written primary artifact.
func (s Status) Saved() bool {
	return s == StatusPDFSaved || s == StatusHTMLSaved
}

// Outcome records the result of retrieving one patent document. Created when
// the retriever finishes an identifier and immutable thereafter.
type Outcome struct {
	// Identifier is the canonical patent identifier (e.g. "US7654321B2").
	Identifier string `json:"identifier" yaml:"identifier"`

	// Status is the terminal retrieval state.
	Status Status `json:"status" yaml:"status"`

	// ArtifactPath is the primary document written on success, empty otherwise.
	ArtifactPath string `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`

	// DebugPaths lists debug artifacts written for this identifier.
	DebugPaths []string `json:"debug_paths,omitempty" yaml:"debug_paths,omitempty"`

	// Attempts counts HTTP attempts made against the decisive endpoint.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Skipped indicates the artifact already existed and no download ran.
	Skipped bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	// Error holds the failure detail for not-found/failed outcomes.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunSummary aggregates all outcomes for one topic invocation. The
// orchestrator owns it for the duration of the run; outcomes are appended in
// result-set order.
type RunSummary struct {
	// Topic is the free-text query, or empty for explicit-identifier runs.
	Topic string `json:"topic" yaml:"topic"`

	// Requested is the maximum identifier count asked for.
	Requested int `json:"requested" yaml:"requested"`

	// Found is the number of canonical identifiers the extractor produced.
	Found int `json:"found" yaml:"found"`

	// Started is the wall-clock start of the run.
	Started time.Time `json:"started" yaml:"started"`

	// Elapsed is the total run duration, set at finalization.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`

	// Outcomes lists per-identifier results in result-set order.
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`
}

// Append adds an outcome to the summary.
func (s *RunSummary) Append(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// CountByStatus tallies outcomes per terminal status.
func (s *RunSummary) CountByStatus() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, o := range s.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Saved returns the number of outcomes with a written primary artifact.
func (s *RunSummary) Saved() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status.Saved() {
			n++
		}
	}
	return n
}

// Failed returns the number of not-found and failed outcomes.
func (s *RunSummary) Failed() int {
	return len(s.Outcomes) - s.Saved()
}

// AllFailed reports whether no identifier produced an artifact. An empty
// summary counts as failed: zero identifiers is the total-failure case.
func (s *RunSummary) AllFailed() bool {
	return s.Saved() == 0
}
