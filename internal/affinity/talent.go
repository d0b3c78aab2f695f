package affinity

// Synergy multiplier range is [synergyFloor, synergyFloor+synergySpan].
const (
	synergyFloor = 0.9
	synergySpan  = 0.2
)

// TalentSynergy derives the collaboration multiplier from talents both people share.
// With no overlapping weighted talent it returns exactly 1.0.
func TalentSynergy(subject, counterpart TalentProfile, weights map[string]float64) float64 {
	acc, weightSum := 0.0, 0.0
	for _, key := range TalentKeys {
		w, ok := weights[key]
		if !ok {
			continue
		}
		a, okA := subject.Value(key)
		b, okB := counterpart.Value(key)
		if !okA || !okB {
			continue
		}
		normalized := Clamp((a+b)/2/MaxScore, 0, 1)
		acc += normalized * w
		weightSum += w
	}
	if weightSum == 0 {
		return 1.0
	}
	return synergyFloor + synergySpan*(acc/weightSum)
}

// SharedStrength reports whether every talent in rule exceeds StrengthThreshold on both sides.
func SharedStrength(subject, counterpart TalentProfile, rule SharedStrengthRule) bool {
	if len(rule.Talents) < 2 {
		return false
	}
	for _, key := range rule.Talents {
		a, okA := subject.Value(key)
		b, okB := counterpart.Value(key)
		if !okA || !okB || a <= StrengthThreshold || b <= StrengthThreshold {
			return false
		}
	}
	return true
}
