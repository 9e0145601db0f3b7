package derive

import "github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"

// The intensity ramp: five anchors at equally spaced positions. This
// table and the interpolation below are the single source of truth for
// activity-intensity color; downstream rendering calls one of the two
// entry points and never rebuilds the anchors.
var gradientAnchors = [5]model.RGB{
	{R: 0x3b, G: 0x82, B: 0xf6}, // blue
	{R: 0x10, G: 0xb9, B: 0x81}, // green
	{R: 0xe6, G: 0xe6, B: 0x00}, // yellow
	{R: 0xf9, G: 0x73, B: 0x16}, // orange
	{R: 0xef, G: 0x44, B: 0x44}, // red
}

// gradientMidpoint is the fallback position for degenerate ranges.
const gradientMidpoint = 0.5

// ColorFromNormalized maps a normalized intensity t in [0,1] onto the
// blue-to-red ramp. Values outside [0,1] are clamped and NaN maps to
// the blue end. Within a segment each channel interpolates linearly.
func ColorFromNormalized(t float64) model.RGB {
	return interpolate(clamp01(t))
}

// ColorFromSpeed maps a raw speed against an activity's normalization
// range. When the range is degenerate (max <= min) every speed maps to
// the gradient midpoint. Delegates to the same interpolation as
// ColorFromNormalized.
func ColorFromSpeed(speed, minSpeed, maxSpeed float64) model.RGB {
	if maxSpeed <= minSpeed {
		return interpolate(gradientMidpoint)
	}
	return interpolate(clamp01((speed - minSpeed) / (maxSpeed - minSpeed)))
}

func interpolate(t float64) model.RGB {
	segments := len(gradientAnchors) - 1
	pos := t * float64(segments)
	i := int(pos)
	if i >= segments {
		return gradientAnchors[segments]
	}
	frac := pos - float64(i)
	a, b := gradientAnchors[i], gradientAnchors[i+1]
	return model.RGB{
		R: lerpChannel(a.R, b.R, frac),
		G: lerpChannel(a.G, b.G, frac),
		B: lerpChannel(a.B, b.B, frac),
	}
}

func lerpChannel(a, b uint8, frac float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*frac + 0.5)
}

func clamp01(t float64) float64 {
	switch {
	case t > 1:
		return 1
	case t >= 0:
		return t
	default:
		// Negatives land here, and so does NaN, whose comparisons
		// are all false. Indexing the anchors with NaN would panic.
		return 0
	}
}
