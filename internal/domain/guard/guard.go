// Package guard decides which decoded activities are eligible for the
// library. Running-form metrics only make sense for running gait, so
// ingestion is restricted to the running sport categories; everything
// else is a clean skip, never an error.
package guard

import "github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"

// SkipUnsupportedSport is the reason attached to every sport-based skip.
const SkipUnsupportedSport = "unsupported_sport"

// Supported sport categories, in the FIT profile's own vocabulary.
const (
	CategoryRunning      = "running"
	CategoryTrailRunning = "trail_running"
)

// Decision is the tagged outcome of classification: either Accept with
// the resolved category, or Skip with a reason.
type Decision struct {
	Accept   bool
	Category string // set when Accept
	Reason   string // set when !Accept
}

// Classify inspects decoded session metadata only; it runs strictly
// after a successful decode and never sees raw bytes. A well-formed
// file of any unsupported sport, including absent sport metadata,
// yields a Skip decision, not an error.
func Classify(act *model.DecodedActivity) Decision {
	if act == nil || act.Sport != "running" {
		return Decision{Reason: SkipUnsupportedSport}
	}
	if act.SubSport == "trail" {
		return Decision{Accept: true, Category: CategoryTrailRunning}
	}
	return Decision{Accept: true, Category: CategoryRunning}
}
