package affinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformCompetencies(v float64) CompetencyProfile {
	p := CompetencyProfile{}
	for _, k := range CompetencyKeys {
		p[k] = v
	}
	return p
}

func uniformOutcomes(v float64) OutcomeProfile {
	p := OutcomeProfile{}
	for _, k := range OutcomeKeys {
		p[k] = v
	}
	return p
}

func uniformTalents(keys []string, v float64) TalentProfile {
	p := TalentProfile{}
	for _, k := range keys {
		p[k] = v
	}
	return p
}

func TestGrowthScore(t *testing.T) {
	tests := []struct {
		name        string
		subject     CompetencyProfile
		counterpart CompetencyProfile
		similarity  float64
		level       float64
		expected    float64
	}{
		{
			name:        "identical profiles at 100",
			subject:     uniformCompetencies(100),
			counterpart: uniformCompetencies(100),
			similarity:  135,
			level:       100,
			expected:    119.25,
		},
		{
			name:        "uniform gap of ten points",
			subject:     uniformCompetencies(100),
			counterpart: uniformCompetencies(90),
			similarity:  125,
			level:       95,
			expected:    111.5,
		},
		{
			name:        "empty counterpart uses neutral level",
			subject:     uniformCompetencies(100),
			counterpart: CompetencyProfile{},
			similarity:  135,
			level:       83.75,
			expected:    0.55*135 + 0.45*((100+NeutralScore)/2),
		},
		{
			name:        "both empty",
			subject:     nil,
			counterpart: nil,
			similarity:  135,
			level:       NeutralScore,
			expected:    0.55*135 + 0.45*NeutralScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GrowthScore(tt.subject, tt.counterpart, ContextExecution)
			assert.InDelta(t, tt.similarity, g.Similarity, 1e-9)
			assert.InDelta(t, tt.level, g.Level, 1e-9)
			assert.InDelta(t, tt.expected, g.Score, 1e-9)
		})
	}
}

func TestGrowthScoreSymmetric(t *testing.T) {
	a := CompetencyProfile{"EL": 95, "RP": 120, "ACT": 88, "NE": 101, "IM": 130, "EMP": 77}
	b := CompetencyProfile{"EL": 110, "RP": 99, "NE": 92, "OP": 115, "EMP": 105, "NG": 86}

	for _, ctx := range Contexts {
		ab := GrowthScore(a, b, ctx)
		ba := GrowthScore(b, a, ctx)
		assert.InDelta(t, ab.Score, ba.Score, 1e-9, "context %s", ctx)
		assert.Equal(t, ab, GrowthScore(a, b, ctx), "deterministic for %s", ctx)
	}
}

func TestUnderstandingScore(t *testing.T) {
	tests := []struct {
		name        string
		subject     OutcomeProfile
		counterpart OutcomeProfile
		distance    float64
	}{
		{"identical profiles", uniformOutcomes(100), uniformOutcomes(100), 0},
		{"missing counterpart sits at neutral", uniformOutcomes(100), OutcomeProfile{}, 100 - NeutralScore},
		{"both missing", nil, nil, 0},
		{"uniform gap", uniformOutcomes(120), uniformOutcomes(100), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := UnderstandingScore(tt.subject, tt.counterpart, ContextLeadership)
			assert.InDelta(t, tt.distance, u.MeanDistance, 1e-9)
			assert.InDelta(t, MaxScore-tt.distance, u.Score, 1e-9)
		})
	}
}

func TestTalentSynergy(t *testing.T) {
	weights := Profile(ContextExecution).Talents
	execTalents := make([]string, 0, len(weights))
	for k := range weights {
		execTalents = append(execTalents, k)
	}

	t.Run("no overlap is exactly neutral", func(t *testing.T) {
		a := TalentProfile{"prioritizing": 120}
		b := TalentProfile{"commitment": 120}
		assert.Equal(t, 1.0, TalentSynergy(a, b, weights))
		assert.Equal(t, 1.0, TalentSynergy(nil, nil, weights))
	})

	t.Run("overlap outside the context is ignored", func(t *testing.T) {
		a := TalentProfile{"imagination": 130}
		b := TalentProfile{"imagination": 130}
		assert.Equal(t, 1.0, TalentSynergy(a, b, weights))
	})

	t.Run("maximum strength reaches the ceiling", func(t *testing.T) {
		a := uniformTalents(execTalents, 135)
		assert.InDelta(t, 1.1, TalentSynergy(a, a, weights), 1e-12)
	})

	t.Run("neutral strength lands in the middle", func(t *testing.T) {
		a := uniformTalents(execTalents, NeutralScore)
		assert.InDelta(t, 1.0, TalentSynergy(a, a, weights), 1e-12)
	})
}

func TestSharedStrength(t *testing.T) {
	rule := Profile(ContextExecution).SharedStrength

	strong := TalentProfile{"prioritizing": 112, "commitment": 115}
	assert.True(t, SharedStrength(strong, strong, rule))

	atThreshold := TalentProfile{"prioritizing": 108, "commitment": 115}
	assert.False(t, SharedStrength(strong, atThreshold, rule))

	partial := TalentProfile{"prioritizing": 120}
	assert.False(t, SharedStrength(strong, partial, rule))

	assert.False(t, SharedStrength(strong, strong, SharedStrengthRule{Talents: []string{"prioritizing"}, Factor: 1.05}))
}

func TestStyleCompatibility(t *testing.T) {
	assert.Equal(t, DefaultStyleCompatibility, StyleCompatibility(StyleUnknown, StyleSage))
	assert.Equal(t, DefaultStyleCompatibility, StyleCompatibility("Wizard", StyleSage))

	for _, a := range Styles {
		self := StyleCompatibility(a, a)
		for _, b := range Styles {
			assert.Equal(t, StyleCompatibility(a, b), StyleCompatibility(b, a), "%s/%s symmetric", a, b)
			if a != b {
				assert.Less(t, self, StyleCompatibility(a, b), "%s self pair should be below %s", a, b)
			}
		}
	}
}

func TestCollaborationScore(t *testing.T) {
	tests := []struct {
		name        string
		a, b        CognitiveStyle
		subject     CompetencyProfile
		counterpart CompetencyProfile
		synergy     float64
		expected    float64
	}{
		{
			name:        "unknown styles with strong relational competencies",
			subject:     uniformCompetencies(100),
			counterpart: uniformCompetencies(100),
			synergy:     1.0,
			expected:    0.55*81 + 0.45*100,
		},
		{
			name:     "complementary styles without competency data",
			a:        StyleDeliverer,
			b:        StyleVisionary,
			synergy:  1.1,
			expected: (0.55*114.75 + 0.45*NeutralScore) * 1.1,
		},
		{
			name:        "result is clamped to the scale",
			a:           StyleDeliverer,
			b:           StyleVisionary,
			subject:     uniformCompetencies(135),
			counterpart: uniformCompetencies(135),
			synergy:     1.1,
			expected:    135,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CollaborationScore(tt.a, tt.b, tt.subject, tt.counterpart, tt.synergy)
			assert.InDelta(t, tt.expected, c.Score, 1e-9)
		})
	}
}
