// Package model contains domain models passed between layers.
package model

import "time"

// FileEvent is the unit of work flowing from the watcher to the
// ingestion workers. Path is absolute.
type FileEvent struct {
	Path    string
	ModTime time.Time
}

// ActivityFile is an immutable handle on one observed file. Identity
// is the content fingerprint, not the path: a renamed file with
// identical bytes is the same activity.
type ActivityFile struct {
	Path        string
	Fingerprint string // hex SHA-256 of the file bytes
	ModTime     time.Time
}

// Trackpoint is one decoded per-sample record. Optional fields are
// pointers; a nil value means the device reported no sample, which is
// distinct from a zero reading.
type Trackpoint struct {
	Timestamp time.Time
	Lat       *float64 // degrees
	Lon       *float64 // degrees
	Distance  float64  // cumulative meters
	Speed     *float64 // m/s, instantaneous
	HeartRate *int     // bpm
	Elevation *float64 // meters
}

// Lap summarizes one recorded lap.
type Lap struct {
	StartTime time.Time
	Duration  time.Duration
	Distance  float64 // meters
	AvgSpeed  float64 // m/s
	AvgHR     int     // bpm, 0 when absent
	MaxHR     int     // bpm, 0 when absent
}

// DecodedActivity is the full decoded form of one activity file. It is
// owned by the caller for a single ingestion pass and not retained
// after derivation.
type DecodedActivity struct {
	Sport     string // FIT sport vocabulary, e.g. "running"
	SubSport  string // FIT sub_sport vocabulary, e.g. "trail"
	StartTime time.Time

	TotalDistance float64       // meters
	TotalDuration time.Duration // timer time
	AvgHeartRate  int           // bpm, 0 when absent
	MaxHeartRate  int           // bpm, 0 when absent
	AvgSpeed      float64       // m/s
	MaxSpeed      float64       // m/s

	Laps        []Lap
	Trackpoints []Trackpoint
}

// RGB is a color produced by the intensity gradient.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Zone is the per-activity training-load classification.
type Zone string

// Zone labels, ascending by training stress. The strings are stored in
// the library and must remain stable.
const (
	ZoneRecovery     Zone = "Recovery"
	ZoneBase         Zone = "Base"
	ZoneOverload     Zone = "Overload"
	ZoneOverreaching Zone = "Overreaching"
)

// DerivedSeries holds the per-sample and per-activity derived metrics
// for an accepted activity. Speeds and Colors are index-aligned with
// the source trackpoints; a nil element marks a sample with no usable
// speed, kept in place for positional continuity.
type DerivedSeries struct {
	Speeds   []*float64 `json:"speeds"`
	Colors   []*RGB     `json:"colors"`
	MinSpeed float64    `json:"min_speed"`
	MaxSpeed float64    `json:"max_speed"`
	Load     float64    `json:"load"`
	Zone     Zone       `json:"zone"`
}

// ActivitySummary is the session-level slice of a DecodedActivity that
// the library persists alongside the derived series.
type ActivitySummary struct {
	Sport         string        `json:"sport"`
	SubSport      string        `json:"sub_sport"`
	StartTime     time.Time     `json:"start_time"`
	TotalDistance float64       `json:"total_distance"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgHeartRate  int           `json:"avg_heart_rate"`
	MaxHeartRate  int           `json:"max_heart_rate"`
	AvgSpeed      float64       `json:"avg_speed"`
	MaxSpeed      float64       `json:"max_speed"`
}

// LibraryEntry is one accepted activity in the persistent library.
type LibraryEntry struct {
	Fingerprint string
	Path        string
	SessionID   string // import batch id
	ImportedAt  time.Time
	Summary     ActivitySummary
	Derived     DerivedSeries
}

// Summary extracts the persisted session-level fields.
func (a *DecodedActivity) Summarize() ActivitySummary {
	return ActivitySummary{
		Sport:         a.Sport,
		SubSport:      a.SubSport,
		StartTime:     a.StartTime,
		TotalDistance: a.TotalDistance,
		TotalDuration: a.TotalDuration,
		AvgHeartRate:  a.AvgHeartRate,
		MaxHeartRate:  a.MaxHeartRate,
		AvgSpeed:      a.AvgSpeed,
		MaxSpeed:      a.MaxSpeed,
	}
}
