// Package normalize maps the shapes and vocabularies different feeds use for
// the same facts onto one canonical form. Nothing here returns an error: bad
// input degrades to a documented fallback.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizeScore maps a raw score to [0,1].
//
// Numbers at or below 1 are already fractional and numbers above 1 are
// percentages. A string counts only with a trailing '%'. Objects are read
// through their "overall" key, including objects serialized into a string.
// Anything else is 0.
func NormalizeScore(raw interface{}) float64 {
	return clamp(score(raw, 0), 0, 1)
}

const maxScoreDepth = 8

func score(raw interface{}, depth int) float64 {
	if depth > maxScoreDepth {
		return 0
	}

	if f, ok := toFloat(raw); ok {
		if f <= 1 {
			return f
		}
		return f / 100
	}

	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.HasSuffix(s, "%") {
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
			if err != nil || !finite(f) {
				return 0
			}
			return f / 100
		}
		if strings.HasPrefix(s, "{") {
			if m, ok := ParseMaybeJSON(s, nil).(map[string]interface{}); ok {
				return score(m, depth+1)
			}
		}
		return 0
	case map[string]interface{}:
		if overall, ok := v["overall"]; ok {
			return score(overall, depth+1)
		}
		return 0
	default:
		return 0
	}
}

// toFloat accepts Go numeric kinds and json.Number, never strings.
func toFloat(raw interface{}) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !finite(f) {
		return 0, false
	}
	return f, true
}

// toFloatLoose additionally parses numeric strings, with or without '%'.
func toFloatLoose(raw interface{}) (float64, bool, bool) {
	if f, ok := toFloat(raw); ok {
		return f, false, true
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false, false
	}
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false, false
	}
	return f, percent, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(f, lo, hi float64) float64 {
	if !finite(f) {
		return lo
	}
	return math.Max(lo, math.Min(hi, f))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
