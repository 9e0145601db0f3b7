package model

import "fmt"

// OutcomeKind discriminates the result of one ingestion pass.
type OutcomeKind int

const (
	// OutcomeAccepted means the file decoded, passed the sport guard,
	// and was upserted into the library.
	OutcomeAccepted OutcomeKind = iota
	// OutcomeSkipped means the file is well-formed but ineligible.
	// A skip is a designed non-error outcome, never a failure.
	OutcomeSkipped
	// OutcomeFailed means the file could not be ingested.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the tagged result of ingesting one file. Exactly one of
// Reason or Err is meaningful, selected by Kind; every caller must
// handle all three branches.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // set for OutcomeSkipped
	Err    error  // set for OutcomeFailed
}

// Accepted builds an accepted outcome.
func Accepted() Outcome { return Outcome{Kind: OutcomeAccepted} }

// Skipped builds a clean-skip outcome with its reason.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// Failed builds a failure outcome wrapping the causal error.
func Failed(err error) Outcome { return Outcome{Kind: OutcomeFailed, Err: err} }
