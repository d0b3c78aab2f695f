package affinity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Synonym tables are keyed by folded (lower-case, accent-free) text.
var contextSynonyms = map[string]Context{
	"innovation":  ContextInnovation,
	"innovacion":  ContextInnovation,
	"innovar":     ContextInnovation,
	"creatividad": ContextInnovation,
	"creativity":  ContextInnovation,
	"ideas":       ContextInnovation,

	"execution": ContextExecution,
	"ejecucion": ContextExecution,
	"ejecutar":  ContextExecution,
	"delivery":  ContextExecution,
	"entrega":   ContextExecution,
	"proyecto":  ContextExecution,
	"project":   ContextExecution,
	"trabajo":   ContextExecution,
	"work":      ContextExecution,

	"leadership": ContextLeadership,
	"liderazgo":  ContextLeadership,
	"lider":      ContextLeadership,
	"leader":     ContextLeadership,
	"equipo":     ContextLeadership,
	"team":       ContextLeadership,
	"management": ContextLeadership,
	"gestion":    ContextLeadership,

	"conversation":  ContextConversation,
	"conversacion":  ContextConversation,
	"charla":        ContextConversation,
	"dialogo":       ContextConversation,
	"dialogue":      ContextConversation,
	"talk":          ContextConversation,
	"comunicacion":  ContextConversation,
	"communication": ContextConversation,

	"relationship":  ContextRelationship,
	"relationships": ContextRelationship,
	"relaciones":    ContextRelationship,
	"relacion":      ContextRelationship,
	"pareja":        ContextRelationship,
	"amistad":       ContextRelationship,
	"friendship":    ContextRelationship,
	"familia":       ContextRelationship,
	"family":        ContextRelationship,

	"decision":    ContextDecision,
	"decisions":   ContextDecision,
	"decisiones":  ContextDecision,
	"negociacion": ContextDecision,
	"negotiation": ContextDecision,
}

var closenessSynonyms = map[string]Closeness{
	"close":    ClosenessClose,
	"cercano":  ClosenessClose,
	"cercana":  ClosenessClose,
	"cerca":    ClosenessClose,
	"proximo":  ClosenessClose,
	"proxima":  ClosenessClose,
	"intimo":   ClosenessClose,
	"intima":   ClosenessClose,
	"friend":   ClosenessClose,
	"amigo":    ClosenessClose,
	"amiga":    ClosenessClose,
	"neutral":  ClosenessNeutral,
	"neutro":   ClosenessNeutral,
	"normal":   ClosenessNeutral,
	"far":      ClosenessFar,
	"lejano":   ClosenessFar,
	"lejana":   ClosenessFar,
	"lejos":    ClosenessFar,
	"distante": ClosenessFar,
	"distant":  ClosenessFar,
}

var competencyAliases = map[string]string{
	"el":                         CompetencyEL,
	"enhanceemotionalliteracy":   CompetencyEL,
	"rp":                         CompetencyRP,
	"recognizepatterns":          CompetencyRP,
	"act":                        CompetencyACT,
	"applyconsequentialthinking": CompetencyACT,
	"ne":                         CompetencyNE,
	"navigateemotions":           CompetencyNE,
	"im":                         CompetencyIM,
	"engageintrinsicmotivation":  CompetencyIM,
	"op":                         CompetencyOP,
	"exerciseoptimism":           CompetencyOP,
	"emp":                        CompetencyEMP,
	"increaseempathy":            CompetencyEMP,
	"ng":                         CompetencyNG,
	"pursuenoblegoals":           CompetencyNG,
}

var (
	outcomeAliases = canonicalIndex(OutcomeKeys)
	talentAliases  = canonicalIndex(TalentKeys)
	styleIndex     = func() map[string]CognitiveStyle {
		m := make(map[string]CognitiveStyle, len(Styles))
		for _, s := range Styles {
			m[fold(string(s))] = s
		}
		return m
	}()
)

func canonicalIndex(keys []string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[fold(k)] = k
	}
	return m
}

// fold lower-cases, trims and strips diacritics so "Liderazgo " and "liderazgo" match.
// Chains carry buffers, so one is built per call to stay safe for concurrent use.
func fold(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return s
}

// foldKey also drops separators, for profile field names like "decision_making".
func foldKey(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			return -1
		}
		return r
	}, fold(raw))
}

// ParseContext is the strict form of NormalizeContext.
func ParseContext(raw string) (Context, bool) {
	c, ok := contextSynonyms[fold(raw)]
	return c, ok
}

// NormalizeContext maps free text onto a canonical context, defaulting to execution.
func NormalizeContext(raw string) Context {
	if c, ok := ParseContext(raw); ok {
		return c
	}
	return ContextExecution
}

// NormalizeCloseness maps free text onto a closeness level, defaulting to neutral.
func NormalizeCloseness(raw string) Closeness {
	if c, ok := closenessSynonyms[fold(raw)]; ok {
		return c
	}
	return ClosenessNeutral
}

// ParseCognitiveStyle matches a style name case-insensitively.
func ParseCognitiveStyle(raw string) CognitiveStyle {
	return styleIndex[fold(raw)]
}

// NewCompetencyProfile builds a profile from loosely typed input, keeping only
// recognised keys with usable numbers.
func NewCompetencyProfile(raw map[string]any) CompetencyProfile {
	return CompetencyProfile(collect(raw, competencyAliases))
}

// NewOutcomeProfile builds an outcome profile from loosely typed input.
func NewOutcomeProfile(raw map[string]any) OutcomeProfile {
	return OutcomeProfile(collect(raw, outcomeAliases))
}

// NewTalentProfile builds a talent profile from loosely typed input.
func NewTalentProfile(raw map[string]any) TalentProfile {
	return TalentProfile(collect(raw, talentAliases))
}

func collect(raw map[string]any, aliases map[string]string) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key, ok := aliases[foldKey(k)]
		if !ok {
			continue
		}
		if f, ok := SafeNumber(v); ok {
			out[key] = f
		}
	}
	return out
}
