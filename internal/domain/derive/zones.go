package derive

import (
	"math"
	"time"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
)

// Banister TRIMP exponential weighting coefficients.
const (
	trimpLinear   = 0.64
	trimpExponent = 1.92
)

// LoadThresholds are the ascending cut-points separating the four
// training-load zones. Each value is the inclusive lower bound of the
// named zone, so a load sitting exactly on a boundary classifies into
// the higher zone. Values are athlete configuration, injected at
// construction.
type LoadThresholds struct {
	Base         float64
	Overload     float64
	Overreaching float64
}

// ClassifyLoad resolves a TRIMP-style load against the cut-points.
func ClassifyLoad(load float64, t LoadThresholds) model.Zone {
	switch {
	case load >= t.Overreaching:
		return model.ZoneOverreaching
	case load >= t.Overload:
		return model.ZoneOverload
	case load >= t.Base:
		return model.ZoneBase
	default:
		return model.ZoneRecovery
	}
}

// trainingLoad computes a TRIMP (training impulse) score: each sampled
// interval is weighted by an exponential factor of heart-rate reserve.
// Samples without heart rate contribute nothing. Duplicate timestamps
// produce zero-length intervals and are harmless.
func (d *Deriver) trainingLoad(act *model.DecodedActivity) float64 {
	rest, max := float64(d.thresholds.RestingHR), float64(d.thresholds.MaxHR)
	if max <= rest {
		return 0
	}

	var load float64
	var sawHR bool
	tps := act.Trackpoints
	for i := 0; i+1 < len(tps); i++ {
		if tps[i].HeartRate == nil {
			continue
		}
		sawHR = true
		dt := tps[i+1].Timestamp.Sub(tps[i].Timestamp)
		if dt <= 0 {
			continue
		}
		load += trimpTerm(dt, reserveFraction(float64(*tps[i].HeartRate), rest, max))
	}
	if sawHR {
		return load
	}

	// No per-sample HR: fall back to the session average, and when the
	// device recorded no HR at all, to average speed against the
	// athlete's threshold pace. Both stay a total-order comparison
	// against injected configuration.
	if act.AvgHeartRate > 0 {
		return trimpTerm(act.TotalDuration, reserveFraction(float64(act.AvgHeartRate), rest, max))
	}
	if d.thresholds.ThresholdSpeed > 0 && act.AvgSpeed > 0 {
		intensity := math.Min(act.AvgSpeed/d.thresholds.ThresholdSpeed, 1)
		return trimpTerm(act.TotalDuration, intensity)
	}
	return 0
}

func trimpTerm(dt time.Duration, intensity float64) float64 {
	return dt.Minutes() * intensity * trimpLinear * math.Exp(trimpExponent*intensity)
}

func reserveFraction(hr, rest, max float64) float64 {
	f := (hr - rest) / (max - rest)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
