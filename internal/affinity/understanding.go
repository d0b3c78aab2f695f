package affinity

import "math"

// UnderstandingBreakdown exposes the terms of the outcome-alignment sub-score.
type UnderstandingBreakdown struct {
	MeanDistance float64 `json:"mean_distance"`
	Score        float64 `json:"score"`
}

// UnderstandingScore measures how aligned two outcome profiles are under ctx.
// A missing side stands at NeutralScore rather than being skipped.
func UnderstandingScore(subject, counterpart OutcomeProfile, ctx Context) UnderstandingBreakdown {
	weights := contextWeights(ctx).Outcomes

	acc, weightSum := 0.0, 0.0
	for _, key := range OutcomeKeys {
		w, ok := weights[key]
		if !ok {
			continue
		}
		a, okA := subject.Value(key)
		if !okA {
			a = NeutralScore
		}
		b, okB := counterpart.Value(key)
		if !okB {
			b = NeutralScore
		}
		acc += math.Abs(a-b) * w
		weightSum += w
	}

	meanDist := NeutralScore
	if weightSum > 0 {
		meanDist = acc / weightSum
	}

	return UnderstandingBreakdown{
		MeanDistance: meanDist,
		Score:        Clamp(MaxScore-meanDist, 0, MaxScore),
	}
}
