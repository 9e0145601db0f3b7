package service

import (
	"sync"
	"time"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
)

// ImportResult is one file's outcome within the current import session.
type ImportResult struct {
	Path    string
	Outcome model.Outcome
	At      time.Time
}

// ImportReport accumulates per-file outcomes for user-visible
// reporting. It is transient: skipped and failed files are recorded
// here, not in the library, and the report resets with each session.
type ImportReport struct {
	mu      sync.Mutex
	results []ImportResult
}

// NewImportReport creates an empty report.
func NewImportReport() *ImportReport {
	return &ImportReport{}
}

// Add records one outcome.
func (r *ImportReport) Add(path string, outcome model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ImportResult{Path: path, Outcome: outcome, At: time.Now()})
}

// Results returns a copy of everything recorded so far.
func (r *ImportReport) Results() []ImportResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ImportResult, len(r.results))
	copy(out, r.results)
	return out
}

// Issues returns only the failed files, for the import-issues list.
func (r *ImportReport) Issues() []ImportResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ImportResult
	for _, res := range r.results {
		if res.Outcome.Kind == model.OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Counts tallies outcomes by kind.
func (r *ImportReport) Counts() (accepted, skipped, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		switch res.Outcome.Kind {
		case model.OutcomeAccepted:
			accepted++
		case model.OutcomeSkipped:
			skipped++
		case model.OutcomeFailed:
			failed++
		}
	}
	return accepted, skipped, failed
}

// Reset clears the report for a new import session.
func (r *ImportReport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = nil
}
