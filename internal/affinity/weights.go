package affinity

import (
	"fmt"
	"math"
)

// Reference totals every weight map of a context sums to.
const (
	CompetencyWeightTotal = 8.0
	OutcomeWeightTotal    = 8.0
	TalentWeightTotal     = 6.0

	// StrengthThreshold is the score both sides must exceed on every bonus talent.
	StrengthThreshold = 108.0
	// DispersionLimit is the subject inconsistency above which leadership is penalised.
	DispersionLimit   = 15.0
	DispersionPenalty = 0.95

	weightTolerance = 0.001
)

// TopWeights is the growth/collaboration/understanding blend of a context.
type TopWeights struct {
	Growth        float64 `json:"growth" yaml:"growth"`
	Collaboration float64 `json:"collaboration" yaml:"collaboration"`
	Understanding float64 `json:"understanding" yaml:"understanding"`
}

// Sum returns the total of the three weights.
func (w TopWeights) Sum() float64 {
	return w.Growth + w.Collaboration + w.Understanding
}

// SharedStrengthRule multiplies the composite when every talent is strong on both sides.
type SharedStrengthRule struct {
	Talents []string `json:"talents"`
	Factor  float64  `json:"factor"`
}

// ContextProfile is the static configuration for one relational context.
type ContextProfile struct {
	Context           Context            `json:"context"`
	Weights           TopWeights         `json:"weights"`
	Competencies      map[string]float64 `json:"competencies"`
	Outcomes          map[string]float64 `json:"outcomes"`
	Talents           map[string]float64 `json:"talents"`
	BiasCap           float64            `json:"bias_cap"`
	Calibration       float64            `json:"calibration"`
	SharedStrength    SharedStrengthRule `json:"shared_strength"`
	DispersionPenalty bool               `json:"dispersion_penalty"`
}

var contextProfiles = map[Context]ContextProfile{
	ContextInnovation: {
		Context: ContextInnovation,
		Weights: TopWeights{Growth: 0.35, Collaboration: 0.35, Understanding: 0.30},
		Competencies: map[string]float64{
			"EL": 0.8, "RP": 1.2, "ACT": 0.8, "NE": 0.9,
			"IM": 1.3, "OP": 1.3, "EMP": 0.8, "NG": 0.9,
		},
		Outcomes: map[string]float64{
			"influence": 1.2, "decisionMaking": 1.0, "network": 1.1, "community": 0.8,
			"balance": 0.7, "health": 0.7, "achievement": 1.3, "satisfaction": 1.2,
		},
		Talents: map[string]float64{
			"imagination": 1.3, "designing": 1.2, "entrepreneurship": 1.0,
			"riskTolerance": 0.9, "vision": 0.9, "modeling": 0.7,
		},
		BiasCap:        1.06,
		Calibration:    0.92,
		SharedStrength: SharedStrengthRule{Talents: []string{"imagination", "designing"}, Factor: 1.05},
	},
	ContextExecution: {
		Context: ContextExecution,
		Weights: TopWeights{Growth: 0.30, Collaboration: 0.40, Understanding: 0.30},
		Competencies: map[string]float64{
			"EL": 0.8, "RP": 1.0, "ACT": 1.3, "NE": 1.1,
			"IM": 1.2, "OP": 0.9, "EMP": 0.8, "NG": 0.9,
		},
		Outcomes: map[string]float64{
			"influence": 0.9, "decisionMaking": 1.3, "network": 0.8, "community": 0.7,
			"balance": 0.9, "health": 0.8, "achievement": 1.5, "satisfaction": 1.1,
		},
		Talents: map[string]float64{
			"prioritizing": 1.3, "commitment": 1.2, "proactivity": 1.0,
			"problemSolving": 1.0, "dataMining": 0.8, "resilience": 0.7,
		},
		BiasCap:        1.07,
		Calibration:    0.93,
		SharedStrength: SharedStrengthRule{Talents: []string{"prioritizing", "commitment"}, Factor: 1.05},
	},
	ContextLeadership: {
		Context: ContextLeadership,
		Weights: TopWeights{Growth: 0.35, Collaboration: 0.35, Understanding: 0.30},
		Competencies: map[string]float64{
			"EL": 0.9, "RP": 0.9, "ACT": 1.1, "NE": 1.1,
			"IM": 0.9, "OP": 0.9, "EMP": 1.1, "NG": 1.1,
		},
		Outcomes: map[string]float64{
			"influence": 1.4, "decisionMaking": 1.2, "network": 1.0, "community": 1.1,
			"balance": 0.7, "health": 0.6, "achievement": 1.0, "satisfaction": 1.0,
		},
		Talents: map[string]float64{
			"vision": 1.3, "connection": 1.2, "commitment": 1.0,
			"adaptability": 0.9, "criticalThinking": 0.8, "resilience": 0.8,
		},
		BiasCap:           1.05,
		Calibration:       0.92,
		SharedStrength:    SharedStrengthRule{Talents: []string{"vision", "connection"}, Factor: 1.04},
		DispersionPenalty: true,
	},
	ContextConversation: {
		Context: ContextConversation,
		Weights: TopWeights{Growth: 0.25, Collaboration: 0.45, Understanding: 0.30},
		Competencies: map[string]float64{
			"EL": 1.3, "RP": 0.8, "ACT": 0.8, "NE": 1.2,
			"IM": 0.7, "OP": 0.9, "EMP": 1.4, "NG": 0.9,
		},
		Outcomes: map[string]float64{
			"influence": 1.0, "decisionMaking": 0.7, "network": 1.3, "community": 1.2,
			"balance": 1.0, "health": 0.8, "achievement": 0.7, "satisfaction": 1.3,
		},
		Talents: map[string]float64{
			"emotionalInsight": 1.3, "connection": 1.3, "reflecting": 1.0,
			"collaboration": 0.9, "adaptability": 0.8, "imagination": 0.7,
		},
		BiasCap:        1.04,
		Calibration:    0.95,
		SharedStrength: SharedStrengthRule{Talents: []string{"emotionalInsight", "connection"}, Factor: 1.05},
	},
	ContextRelationship: {
		Context: ContextRelationship,
		Weights: TopWeights{Growth: 0.25, Collaboration: 0.40, Understanding: 0.35},
		Competencies: map[string]float64{
			"EL": 1.1, "RP": 0.8, "ACT": 0.8, "NE": 1.2,
			"IM": 0.8, "OP": 1.0, "EMP": 1.4, "NG": 0.9,
		},
		Outcomes: map[string]float64{
			"influence": 0.7, "decisionMaking": 0.8, "network": 1.0, "community": 1.1,
			"balance": 1.3, "health": 1.2, "achievement": 0.6, "satisfaction": 1.3,
		},
		Talents: map[string]float64{
			"emotionalInsight": 1.3, "collaboration": 1.2, "connection": 1.1,
			"reflecting": 0.9, "resilience": 0.8, "adaptability": 0.7,
		},
		BiasCap:        1.04,
		Calibration:    0.94,
		SharedStrength: SharedStrengthRule{Talents: []string{"emotionalInsight", "collaboration"}, Factor: 1.04},
	},
	ContextDecision: {
		Context: ContextDecision,
		Weights: TopWeights{Growth: 0.40, Collaboration: 0.25, Understanding: 0.35},
		Competencies: map[string]float64{
			"EL": 0.9, "RP": 1.3, "ACT": 1.4, "NE": 1.1,
			"IM": 0.7, "OP": 0.8, "EMP": 0.8, "NG": 1.0,
		},
		Outcomes: map[string]float64{
			"influence": 1.0, "decisionMaking": 1.6, "network": 0.7, "community": 0.7,
			"balance": 0.9, "health": 0.7, "achievement": 1.2, "satisfaction": 1.2,
		},
		Talents: map[string]float64{
			"criticalThinking": 1.3, "dataMining": 1.2, "modeling": 1.0,
			"problemSolving": 1.0, "prioritizing": 0.8, "riskTolerance": 0.7,
		},
		BiasCap:        1.05,
		Calibration:    0.90,
		SharedStrength: SharedStrengthRule{Talents: []string{"criticalThinking", "dataMining"}, Factor: 1.04},
	},
}

// Profile returns a copy of the configuration for ctx. Unknown contexts fall back to execution.
func Profile(ctx Context) ContextProfile {
	p, ok := contextProfiles[ctx]
	if !ok {
		p = contextProfiles[ContextExecution]
	}
	return p.clone()
}

func (p ContextProfile) clone() ContextProfile {
	out := p
	out.Competencies = copyWeights(p.Competencies)
	out.Outcomes = copyWeights(p.Outcomes)
	out.Talents = copyWeights(p.Talents)
	out.SharedStrength.Talents = append([]string(nil), p.SharedStrength.Talents...)
	return out
}

func copyWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sumWeights(m map[string]float64) float64 {
	s := 0.0
	for _, v := range m {
		s += v
	}
	return s
}

// Validate checks the weight invariants of a context profile.
func (p ContextProfile) Validate() error {
	if math.Abs(p.Weights.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%s: top-level weights sum to %.4f, must sum to 1.0", p.Context, p.Weights.Sum())
	}
	checks := []struct {
		name  string
		m     map[string]float64
		total float64
	}{
		{"competency", p.Competencies, CompetencyWeightTotal},
		{"outcome", p.Outcomes, OutcomeWeightTotal},
		{"talent", p.Talents, TalentWeightTotal},
	}
	for _, c := range checks {
		if s := sumWeights(c.m); math.Abs(s-c.total) > weightTolerance {
			return fmt.Errorf("%s: %s weights sum to %.4f, must sum to %.1f", p.Context, c.name, s, c.total)
		}
		for k, v := range c.m {
			if v < 0 {
				return fmt.Errorf("%s: negative %s weight for %s", p.Context, c.name, k)
			}
		}
	}
	if len(p.SharedStrength.Talents) < 2 {
		return fmt.Errorf("%s: shared-strength rule needs at least two talents", p.Context)
	}
	if p.Calibration <= 0 || p.BiasCap <= 0 {
		return fmt.Errorf("%s: calibration and bias cap must be positive", p.Context)
	}
	return nil
}
