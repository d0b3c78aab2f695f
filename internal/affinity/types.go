package affinity

// Context is the relational lens an affinity score is computed under.
type Context string

const (
	ContextInnovation   Context = "innovation"
	ContextExecution    Context = "execution"
	ContextLeadership   Context = "leadership"
	ContextConversation Context = "conversation"
	ContextRelationship Context = "relationship"
	ContextDecision     Context = "decision"
)

// Contexts lists every canonical context in a stable order.
var Contexts = []Context{
	ContextInnovation,
	ContextExecution,
	ContextLeadership,
	ContextConversation,
	ContextRelationship,
	ContextDecision,
}

// Closeness describes how close two people already are.
type Closeness string

const (
	ClosenessClose   Closeness = "close"
	ClosenessNeutral Closeness = "neutral"
	ClosenessFar     Closeness = "far"
)

// Multiplier returns the composite multiplier for the closeness level.
func (c Closeness) Multiplier() float64 {
	switch c {
	case ClosenessClose:
		return 1.0
	case ClosenessFar:
		return 0.75
	default:
		return 0.9
	}
}

// CognitiveStyle is the categorical thinking-pattern cluster of a person.
type CognitiveStyle string

const (
	StyleUnknown    CognitiveStyle = ""
	StyleStrategist CognitiveStyle = "Strategist"
	StyleScientist  CognitiveStyle = "Scientist"
	StyleGuardian   CognitiveStyle = "Guardian"
	StyleDeliverer  CognitiveStyle = "Deliverer"
	StyleInventor   CognitiveStyle = "Inventor"
	StyleEnergizer  CognitiveStyle = "Energizer"
	StyleSage       CognitiveStyle = "Sage"
	StyleVisionary  CognitiveStyle = "Visionary"
)

// Styles lists the eight known cognitive styles.
var Styles = []CognitiveStyle{
	StyleStrategist,
	StyleScientist,
	StyleGuardian,
	StyleDeliverer,
	StyleInventor,
	StyleEnergizer,
	StyleSage,
	StyleVisionary,
}

// Canonical competency keys.
const (
	CompetencyEL  = "EL"
	CompetencyRP  = "RP"
	CompetencyACT = "ACT"
	CompetencyNE  = "NE"
	CompetencyIM  = "IM"
	CompetencyOP  = "OP"
	CompetencyEMP = "EMP"
	CompetencyNG  = "NG"
)

// CompetencyKeys lists the eight canonical competencies.
var CompetencyKeys = []string{
	CompetencyEL, CompetencyRP, CompetencyACT, CompetencyNE,
	CompetencyIM, CompetencyOP, CompetencyEMP, CompetencyNG,
}

// RelationalCompetencies feed the relational half of the collaboration score.
var RelationalCompetencies = []string{
	CompetencyEMP, CompetencyNE, CompetencyIM, CompetencyNG, CompetencyRP, CompetencyACT,
}

// OutcomeKeys lists the eight canonical outcome subfactors.
var OutcomeKeys = []string{
	"influence", "decisionMaking", "network", "community",
	"balance", "health", "achievement", "satisfaction",
}

// TalentKeys lists the eighteen canonical behavioral talents.
var TalentKeys = []string{
	"dataMining", "modeling", "prioritizing",
	"connection", "emotionalInsight", "collaboration",
	"reflecting", "adaptability", "criticalThinking",
	"resilience", "riskTolerance", "imagination",
	"proactivity", "commitment", "problemSolving",
	"vision", "designing", "entrepreneurship",
}

// CompetencyProfile maps competency key to score. A missing key is unknown, never zero.
type CompetencyProfile map[string]float64

// OutcomeProfile maps outcome subfactor key to score.
type OutcomeProfile map[string]float64

// TalentProfile maps talent key to score.
type TalentProfile map[string]float64

// Value returns the score for key if present and finite.
func (p CompetencyProfile) Value(key string) (float64, bool) { return lookup(p, key) }

// Value returns the score for key if present and finite.
func (p OutcomeProfile) Value(key string) (float64, bool) { return lookup(p, key) }

// Value returns the score for key if present and finite.
func (p TalentProfile) Value(key string) (float64, bool) { return lookup(p, key) }

func lookup(m map[string]float64, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return SafeNumber(v)
}

// Bundle is everything the engine knows about one person.
type Bundle struct {
	Competencies CompetencyProfile `json:"competencies,omitempty"`
	Outcomes     OutcomeProfile    `json:"outcomes,omitempty"`
	Talents      TalentProfile     `json:"talents,omitempty"`
	Style        CognitiveStyle    `json:"style,omitempty"`
}

// HasData reports whether the bundle carries any competency or outcome value.
func (b Bundle) HasData() bool {
	for _, k := range CompetencyKeys {
		if _, ok := b.Competencies.Value(k); ok {
			return true
		}
	}
	for _, k := range OutcomeKeys {
		if _, ok := b.Outcomes.Value(k); ok {
			return true
		}
	}
	return false
}

// Level is the five-way qualitative classification of a composite score.
type Level string

const (
	LevelChallenge  Level = "Challenge"
	LevelEmerging   Level = "Emerging"
	LevelFunctional Level = "Functional"
	LevelSkilled    Level = "Skilled"
	LevelExpert     Level = "Expert"
)

// Band is the coarse hot/warm/cold classification of a composite score.
type Band string

const (
	BandHot  Band = "hot"
	BandWarm Band = "warm"
	BandCold Band = "cold"
)

// SubScores are the three weighted components of a composite.
type SubScores struct {
	Growth        float64 `json:"growth"`
	Collaboration float64 `json:"collaboration"`
	Understanding float64 `json:"understanding"`
}

// Adjustments are the multiplicative inputs applied on top of the weighted blend.
type Adjustments struct {
	Context   Context   `json:"context"`
	Bias      float64   `json:"bias"`
	Closeness Closeness `json:"closeness"`
	// SharedStrength is set when the context bonus talents are strong on both sides.
	SharedStrength bool `json:"shared_strength"`
	// Dispersion is the subject's mean absolute deviation from the growth level, if known.
	Dispersion    float64 `json:"dispersion"`
	HasDispersion bool    `json:"-"`
}

// Result is the engine output for one (subject, counterpart, context) triple.
type Result struct {
	Composite   float64   `json:"composite"`
	Heat        int       `json:"heat"`
	Level       Level     `json:"level"`
	Band        Band      `json:"band"`
	Context     Context   `json:"context"`
	SubScores   SubScores `json:"sub_scores"`
	AppliedBias float64   `json:"applied_bias"`
	Calibration float64   `json:"calibration"`
	Closeness   Closeness `json:"closeness"`
	Bonus       float64   `json:"bonus"`
	Penalty     float64   `json:"penalty"`
}
