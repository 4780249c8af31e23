package normalize

import "math"

// Scale names the unit a feed reports ratings in.
type Scale int

const (
	// ScaleAuto guesses: integers 0..5 are five-point, other values at or
	// below 1 are fractions, the rest are percentages.
	ScaleAuto Scale = iota
	ScaleFivePoint
	ScalePercent
	ScaleFraction
	// ScaleRating reads values up to 5 as five-point and anything larger as
	// a percentage.
	ScaleRating
)

// MaxRating is the top of the canonical rating scale.
const MaxRating = 5.0

// NormalizeRating converts raw to the canonical 0..5 scale, rounded to two
// decimals. It returns nil when raw carries no usable number.
func NormalizeRating(raw interface{}, scale Scale) *float64 {
	if raw == nil {
		return nil
	}

	if m, ok := ParseMaybeJSON(raw, nil).(map[string]interface{}); ok {
		if _, has := m["overall"]; !has {
			return nil
		}
		r := round2(NormalizeScore(m) * MaxRating)
		return &r
	}

	f, percent, ok := toFloatLoose(raw)
	if !ok {
		return nil
	}

	var r float64
	switch {
	case percent:
		r = f / 100 * MaxRating
	case scale == ScaleFivePoint:
		r = f
	case scale == ScalePercent:
		r = f / 100 * MaxRating
	case scale == ScaleFraction:
		r = f * MaxRating
	case scale == ScaleRating:
		if f > MaxRating {
			r = f / 100 * MaxRating
		} else {
			r = f
		}
	default:
		switch {
		case f >= 0 && f <= MaxRating && f == math.Trunc(f):
			r = f
		case f <= 1:
			r = f * MaxRating
		default:
			r = f / 100 * MaxRating
		}
	}

	r = round2(clamp(r, 0, MaxRating))
	return &r
}

// RatingFromScore turns a [0,1] score into a canonical rating.
func RatingFromScore(score float64) float64 {
	return round2(clamp(score, 0, 1) * MaxRating)
}
