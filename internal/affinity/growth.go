package affinity

import "math"

// Growth blend: closeness to each other counts more than absolute strength.
const (
	growthSimilarityWeight = 0.55
	growthLevelWeight      = 0.45
)

// GrowthBreakdown exposes the terms of the competency-similarity sub-score.
type GrowthBreakdown struct {
	MeanWeightedDiff float64 `json:"mean_weighted_diff"`
	Similarity       float64 `json:"similarity"`
	Level            float64 `json:"level"`
	Score            float64 `json:"score"`
	// SubjectValues are the subject's present competency values, used for dispersion.
	SubjectValues []float64 `json:"-"`
}

// GrowthScore compares two competency profiles under ctx.
func GrowthScore(subject, counterpart CompetencyProfile, ctx Context) GrowthBreakdown {
	weights := contextWeights(ctx).Competencies

	var diffs, subjectVals, counterpartVals []float64
	for _, key := range CompetencyKeys {
		w, ok := weights[key]
		if !ok {
			continue
		}
		a, okA := subject.Value(key)
		b, okB := counterpart.Value(key)
		if okA {
			subjectVals = append(subjectVals, a)
		}
		if okB {
			counterpartVals = append(counterpartVals, b)
		}
		if okA && okB {
			diffs = append(diffs, math.Abs(a-b)*w)
		}
	}

	meanDiff := MeanOr(diffs, 0)
	similarity := Clamp(MaxScore-meanDiff, 0, MaxScore)
	level := Clamp((MeanOr(subjectVals, NeutralScore)+MeanOr(counterpartVals, NeutralScore))/2, 0, MaxScore)

	return GrowthBreakdown{
		MeanWeightedDiff: meanDiff,
		Similarity:       similarity,
		Level:            level,
		Score:            Clamp(growthSimilarityWeight*similarity+growthLevelWeight*level, 0, MaxScore),
		SubjectValues:    subjectVals,
	}
}

// contextWeights reads the static table without copying; callers must not mutate it.
func contextWeights(ctx Context) ContextProfile {
	if p, ok := contextProfiles[ctx]; ok {
		return p
	}
	return contextProfiles[ContextExecution]
}
