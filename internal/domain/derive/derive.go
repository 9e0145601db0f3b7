// Package derive computes per-sample and per-activity metrics for
// accepted activities: the filled speed series, the normalized color
// mapping, and the training-load zone. All computation is pure; the
// athlete's thresholds are injected at construction, never read from
// process-wide state.
package derive

import "github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"

// Thresholds is the athlete configuration the deriver needs.
type Thresholds struct {
	RestingHR      int     // bpm
	MaxHR          int     // bpm
	ThresholdSpeed float64 // m/s, used only when an activity has no HR data
	Load           LoadThresholds
}

// Deriver derives metric series from decoded activities.
type Deriver struct {
	thresholds Thresholds
}

// NewDeriver builds a Deriver with the given athlete thresholds.
func NewDeriver(t Thresholds) *Deriver {
	return &Deriver{thresholds: t}
}

// Derive computes the derived series for an accepted activity. Samples
// whose speed cannot be established stay nil in both the speed and
// color series; they are excluded from normalization but keep their
// position so downstream charting preserves gaps.
func (d *Deriver) Derive(act *model.DecodedActivity) *model.DerivedSeries {
	speeds := speedSeries(act.Trackpoints)

	minSpeed, maxSpeed, found := speedRange(speeds)
	colors := make([]*model.RGB, len(speeds))
	for i, s := range speeds {
		if s == nil {
			continue
		}
		c := ColorFromSpeed(*s, minSpeed, maxSpeed)
		colors[i] = &c
	}

	series := &model.DerivedSeries{
		Speeds: speeds,
		Colors: colors,
		Load:   d.trainingLoad(act),
	}
	if found {
		series.MinSpeed, series.MaxSpeed = minSpeed, maxSpeed
	}
	series.Zone = ClassifyLoad(series.Load, d.thresholds.Load)
	return series
}

// speedSeries prefers the device-reported instantaneous speed and
// falls back to consecutive distance/time deltas. A zero elapsed time
// leaves the sample nil rather than producing an infinity, and a
// non-advancing distance leaves it nil too: a stalled cumulative
// distance cannot be told apart from a dropped sample.
func speedSeries(tps []model.Trackpoint) []*float64 {
	speeds := make([]*float64, len(tps))
	for i, tp := range tps {
		if tp.Speed != nil {
			v := *tp.Speed
			speeds[i] = &v
			continue
		}
		if i == 0 {
			continue
		}
		dt := tp.Timestamp.Sub(tps[i-1].Timestamp).Seconds()
		dd := tp.Distance - tps[i-1].Distance
		if dt > 0 && dd > 0 {
			v := dd / dt
			speeds[i] = &v
		}
	}
	return speeds
}

// speedRange reports min/max over the non-nil samples.
func speedRange(speeds []*float64) (minSpeed, maxSpeed float64, found bool) {
	for _, s := range speeds {
		if s == nil {
			continue
		}
		if !found || *s < minSpeed {
			minSpeed = *s
		}
		if !found || *s > maxSpeed {
			maxSpeed = *s
		}
		found = true
	}
	return minSpeed, maxSpeed, found
}
