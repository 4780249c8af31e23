package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want float64
	}{
		{"percentage number", 87, 0.87},
		{"fraction", 0.42, 0.42},
		{"exactly one", 1, 1},
		{"percent string", "73%", 0.73},
		{"percent string with spaces", " 64 % ", 0.64},
		{"overall object", map[string]interface{}{"overall": "55%"}, 0.55},
		{"nested overall", map[string]interface{}{"overall": map[string]interface{}{"overall": 90}}, 0.9},
		{"object as json string", `{"overall": 72, "skills": 40}`, 0.72},
		{"json number", json.Number("45"), 0.45},
		{"nil", nil, 0},
		{"plain numeric string", "87", 0},
		{"garbage string", "excellent", 0},
		{"object without overall", map[string]interface{}{"score": 80}, 0},
		{"slice", []interface{}{1, 2}, 0},
		{"above hundred clamps", 250, 1},
		{"negative clamps", -3, 0},
		{"NaN", math.NaN(), 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeScore(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestNormalizeScore_ExactValues(t *testing.T) {
	assert.Equal(t, 0.87, NormalizeScore(87))
	assert.Equal(t, 0.42, NormalizeScore(0.42))
	assert.Equal(t, 0.73, NormalizeScore("73%"))
	assert.Equal(t, 0.55, NormalizeScore(map[string]interface{}{"overall": "55%"}))
	assert.Equal(t, 0.0, NormalizeScore(nil))
}

func TestNormalizeRating(t *testing.T) {
	tests := []struct {
		name  string
		raw   interface{}
		scale Scale
		want  *float64
	}{
		{"five point int", 4, ScaleFivePoint, f(4)},
		{"five point clamps", 9, ScaleFivePoint, f(5)},
		{"percent string", "80", ScalePercent, f(4)},
		{"percent string with sign", "90%", ScaleAuto, f(4.5)},
		{"fraction", 0.5, ScaleFraction, f(2.5)},
		{"rating keeps canonical", 4.5, ScaleRating, f(4.5)},
		{"rating reads large values as percent", 70, ScaleRating, f(3.5)},
		{"auto integer is five point", 3, ScaleAuto, f(3)},
		{"auto fraction", 0.8, ScaleAuto, f(4)},
		{"auto percentage", 72, ScaleAuto, f(3.6)},
		{"overall object", map[string]interface{}{"overall": 60}, ScaleAuto, f(3)},
		{"nil", nil, ScaleAuto, nil},
		{"words", "great", ScaleAuto, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRating(tt.raw, tt.scale)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestRatingFromScore(t *testing.T) {
	assert.Equal(t, 4.35, RatingFromScore(0.87))
	assert.Equal(t, 5.0, RatingFromScore(3))
}

func f(v float64) *float64 { return &v }
