package affinity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NeutralScore stands in for a whole side with no data. It is deliberately not the
// midpoint of the 65-135 assessment scale.
const NeutralScore = 67.5

// MaxScore is the top of the composite scale.
const MaxScore = 135.0

// SafeNumber coerces v to a finite float64. Nil, empty and non-finite input is missing.
func SafeNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out = append(out, x)
	}
	return out
}

// Mean averages the finite values of xs. ok is false when none are left.
func Mean(xs []float64) (float64, bool) {
	vals := finite(xs)
	if len(vals) == 0 {
		return 0, false
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals)), true
}

// MeanOr returns Mean(xs) or fallback when xs holds no finite value.
func MeanOr(xs []float64, fallback float64) float64 {
	if m, ok := Mean(xs); ok {
		return m
	}
	return fallback
}

// StdDev is the population standard deviation of the finite values of xs.
func StdDev(xs []float64) (float64, bool) {
	vals := finite(xs)
	m, ok := Mean(vals)
	if !ok {
		return 0, false
	}
	ss := 0.0
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals))), true
}

// MeanAbsDeviation averages |x - baseline| over the finite values of xs.
func MeanAbsDeviation(xs []float64, baseline float64) (float64, bool) {
	vals := finite(xs)
	if len(vals) == 0 {
		return 0, false
	}
	s := 0.0
	for _, v := range vals {
		s += math.Abs(v - baseline)
	}
	return s / float64(len(vals)), true
}

// Rescale135To100 maps a 0-135 score onto the 0-100 heat scale.
func Rescale135To100(x float64) int {
	return int(Clamp(math.Round(x/MaxScore*100), 0, 100))
}

// ClassifyLevel buckets a 0-135 score. Upper bounds are exclusive.
func ClassifyLevel(score float64) Level {
	switch {
	case score < 82:
		return LevelChallenge
	case score < 92:
		return LevelEmerging
	case score < 108:
		return LevelFunctional
	case score < 118:
		return LevelSkilled
	default:
		return LevelExpert
	}
}

// ClassifyBand buckets a 0-135 score into hot, warm or cold.
func ClassifyBand(score float64) Band {
	switch {
	case score >= 108:
		return BandHot
	case score >= 92:
		return BandWarm
	default:
		return BandCold
	}
}
