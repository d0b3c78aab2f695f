package affinity

import (
	"errors"
	"math"
)

// ErrNoProfileData is returned when either side has neither competency nor outcome
// data. Callers surface it as "not available" instead of a neutral-looking score.
var ErrNoProfileData = errors.New("affinity: profile data not available")

// Details carries the intermediate terms behind a result for diagnostic display.
type Details struct {
	Growth        GrowthBreakdown        `json:"growth"`
	Understanding UnderstandingBreakdown `json:"understanding"`
	Collaboration CollaborationBreakdown `json:"collaboration"`
	Dispersion    float64                `json:"dispersion"`
}

// Aggregate folds the three sub-scores into the bounded composite under profile p.
func Aggregate(s SubScores, adj Adjustments, p ContextProfile) Result {
	bias := adj.Bias
	if bias <= 0 || math.IsNaN(bias) || math.IsInf(bias, 0) {
		bias = 1.0
	}
	bias = math.Min(bias, p.BiasCap)

	w := p.Weights
	raw := (w.Growth*s.Growth + w.Collaboration*s.Collaboration + w.Understanding*s.Understanding) *
		bias * p.Calibration * adj.Closeness.Multiplier()

	bonus := 1.0
	if adj.SharedStrength && p.SharedStrength.Factor > 0 {
		bonus = p.SharedStrength.Factor
		raw *= bonus
	}

	penalty := 1.0
	if p.DispersionPenalty && adj.HasDispersion && adj.Dispersion > DispersionLimit {
		penalty = DispersionPenalty
		raw *= penalty
	}

	composite := Clamp(raw, 0, MaxScore)
	return Result{
		Composite:   composite,
		Heat:        Rescale135To100(composite),
		Level:       ClassifyLevel(composite),
		Band:        ClassifyBand(composite),
		Context:     p.Context,
		SubScores:   s,
		AppliedBias: bias,
		Calibration: p.Calibration,
		Closeness:   adj.Closeness,
		Bonus:       bonus,
		Penalty:     penalty,
	}
}

// Input is one scoring request. Context and Closeness are free text.
type Input struct {
	Subject     Bundle  `json:"subject"`
	Counterpart Bundle  `json:"counterpart"`
	Context     string  `json:"context"`
	Closeness   string  `json:"closeness"`
	Bias        float64 `json:"bias"`
}

// Engine scores pairs of bundles. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	profiles map[Context]ContextProfile
}

// NewEngine builds an engine from the compiled tables with optional calibration overrides.
func NewEngine(overrides map[Context]CalibrationOverride) *Engine {
	profiles := make(map[Context]ContextProfile, len(Contexts))
	for _, ctx := range Contexts {
		p := Profile(ctx)
		if o, ok := overrides[ctx]; ok {
			p = o.Apply(p)
		}
		profiles[ctx] = p
	}
	return &Engine{profiles: profiles}
}

// Profile returns the effective profile the engine uses for ctx.
func (e *Engine) Profile(ctx Context) ContextProfile {
	if p, ok := e.profiles[ctx]; ok {
		return p.clone()
	}
	return Profile(ctx)
}

// Score runs the full pipeline for in.
func (e *Engine) Score(in Input) (Result, error) {
	res, _, err := e.ScoreDetailed(in)
	return res, err
}

// ScoreDetailed is Score plus the intermediate terms.
func (e *Engine) ScoreDetailed(in Input) (Result, Details, error) {
	if !in.Subject.HasData() || !in.Counterpart.HasData() {
		return Result{}, Details{}, ErrNoProfileData
	}

	ctx := NormalizeContext(in.Context)
	p, ok := e.profiles[ctx]
	if !ok {
		p = Profile(ctx)
	}

	growth := GrowthScore(in.Subject.Competencies, in.Counterpart.Competencies, ctx)
	understanding := UnderstandingScore(in.Subject.Outcomes, in.Counterpart.Outcomes, ctx)
	synergy := TalentSynergy(in.Subject.Talents, in.Counterpart.Talents, p.Talents)
	collab := CollaborationScore(in.Subject.Style, in.Counterpart.Style,
		in.Subject.Competencies, in.Counterpart.Competencies, synergy)

	adj := Adjustments{
		Context:        ctx,
		Bias:           in.Bias,
		Closeness:      NormalizeCloseness(in.Closeness),
		SharedStrength: SharedStrength(in.Subject.Talents, in.Counterpart.Talents, p.SharedStrength),
	}
	adj.Dispersion, adj.HasDispersion = MeanAbsDeviation(growth.SubjectValues, growth.Level)

	res := Aggregate(SubScores{
		Growth:        growth.Score,
		Collaboration: collab.Score,
		Understanding: understanding.Score,
	}, adj, p)

	return res, Details{
		Growth:        growth,
		Understanding: understanding,
		Collaboration: collab,
		Dispersion:    adj.Dispersion,
	}, nil
}

var defaultEngine = NewEngine(nil)

// Score runs in through an engine built from the compiled tables.
func Score(in Input) (Result, error) {
	return defaultEngine.Score(in)
}
