package affinity

// DefaultStyleCompatibility is used when either style is unknown or the pair is unmapped.
const DefaultStyleCompatibility = 60.0

const (
	collabStyleWeight      = 0.55
	collabRelationalWeight = 0.45
)

type stylePair struct{ a, b CognitiveStyle }

// styleMatrix is the ease of collaboration (0-100) between styles. Same-style pairs
// sit below most cross pairs: similar thinkers share blind spots.
var styleMatrix = buildStyleMatrix(map[stylePair]float64{
	{StyleStrategist, StyleStrategist}: 55,
	{StyleStrategist, StyleScientist}:  68,
	{StyleStrategist, StyleGuardian}:   72,
	{StyleStrategist, StyleDeliverer}:  84,
	{StyleStrategist, StyleInventor}:   75,
	{StyleStrategist, StyleEnergizer}:  80,
	{StyleStrategist, StyleSage}:       70,
	{StyleStrategist, StyleVisionary}:  78,

	{StyleScientist, StyleScientist}: 56,
	{StyleScientist, StyleGuardian}:  74,
	{StyleScientist, StyleDeliverer}: 70,
	{StyleScientist, StyleInventor}:  82,
	{StyleScientist, StyleEnergizer}: 66,
	{StyleScientist, StyleSage}:      76,
	{StyleScientist, StyleVisionary}: 80,

	{StyleGuardian, StyleGuardian}:  58,
	{StyleGuardian, StyleDeliverer}: 73,
	{StyleGuardian, StyleInventor}:  62,
	{StyleGuardian, StyleEnergizer}: 77,
	{StyleGuardian, StyleSage}:      81,
	{StyleGuardian, StyleVisionary}: 64,

	{StyleDeliverer, StyleDeliverer}: 57,
	{StyleDeliverer, StyleInventor}:  79,
	{StyleDeliverer, StyleEnergizer}: 71,
	{StyleDeliverer, StyleSage}:      67,
	{StyleDeliverer, StyleVisionary}: 85,

	{StyleInventor, StyleInventor}:  54,
	{StyleInventor, StyleEnergizer}: 76,
	{StyleInventor, StyleSage}:      69,
	{StyleInventor, StyleVisionary}: 72,

	{StyleEnergizer, StyleEnergizer}: 53,
	{StyleEnergizer, StyleSage}:      74,
	{StyleEnergizer, StyleVisionary}: 79,

	{StyleSage, StyleSage}:      56,
	{StyleSage, StyleVisionary}: 77,

	{StyleVisionary, StyleVisionary}: 52,
})

func buildStyleMatrix(upper map[stylePair]float64) map[stylePair]float64 {
	m := make(map[stylePair]float64, len(upper)*2)
	for p, v := range upper {
		m[p] = v
		m[stylePair{p.b, p.a}] = v
	}
	return m
}

// StyleCompatibility returns the 0-100 ease of collaboration between two styles.
func StyleCompatibility(a, b CognitiveStyle) float64 {
	if a == StyleUnknown || b == StyleUnknown {
		return DefaultStyleCompatibility
	}
	if v, ok := styleMatrix[stylePair{a, b}]; ok {
		return v
	}
	return DefaultStyleCompatibility
}

// CollaborationBreakdown exposes the terms of the collaboration sub-score.
type CollaborationBreakdown struct {
	StyleScore     float64 `json:"style_score"`
	RelationalMean float64 `json:"relational_mean"`
	Synergy        float64 `json:"synergy"`
	Score          float64 `json:"score"`
}

// CollaborationScore blends style compatibility with relational competencies and
// scales the result by the talent synergy multiplier.
func CollaborationScore(subjectStyle, counterpartStyle CognitiveStyle, subject, counterpart CompetencyProfile, synergy float64) CollaborationBreakdown {
	style135 := StyleCompatibility(subjectStyle, counterpartStyle) / 100 * MaxScore

	vals := make([]float64, 0, 2*len(RelationalCompetencies))
	for _, p := range []CompetencyProfile{subject, counterpart} {
		for _, key := range RelationalCompetencies {
			v, ok := p.Value(key)
			if !ok {
				v = NeutralScore
			}
			vals = append(vals, v)
		}
	}
	relational := MeanOr(vals, NeutralScore)

	return CollaborationBreakdown{
		StyleScore:     style135,
		RelationalMean: relational,
		Synergy:        synergy,
		Score:          Clamp((collabStyleWeight*style135+collabRelationalWeight*relational)*synergy, 0, MaxScore),
	}
}
