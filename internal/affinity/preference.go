package affinity

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxHistory is how many recent messages the learner looks at.
const MaxHistory = 50

// StyleLabel names the dominant communication style found in a message history.
type StyleLabel string

const (
	StyleNumeric   StyleLabel = "numeric"
	StyleNarrative StyleLabel = "narrative"
	StyleBalanced  StyleLabel = "balanced"
)

// PreferenceBias is a cached hint, never authoritative state.
type PreferenceBias struct {
	Style         StyleLabel `json:"style"`
	NumericBias   float64    `json:"numeric_bias"`
	NarrativeBias float64    `json:"narrative_bias"`
	ToneFactor    float64    `json:"tone_factor"`
	DetailFactor  float64    `json:"detail_factor"`
	Factor        float64    `json:"factor"`
}

// NeutralBias applies no nudge at all.
func NeutralBias() PreferenceBias {
	return PreferenceBias{
		Style:         StyleBalanced,
		NumericBias:   1.0,
		NarrativeBias: 1.0,
		ToneFactor:    1.0,
		DetailFactor:  1.0,
		Factor:        1.0,
	}
}

// BiasLearner turns a message history (newest first) into a bias factor.
type BiasLearner interface {
	Learn(messages []string) PreferenceBias
}

// HeuristicLearner counts tokens; it is not a language model.
type HeuristicLearner struct {
	reasoningMarkers map[string]bool
	reasoningPhrases []string
	directiveVerbs   map[string]bool
}

var numericToken = regexp.MustCompile(`\d+(?:[.,]\d+)?%?`)

// NewHeuristicLearner creates a learner with the built-in English and Spanish markers.
func NewHeuristicLearner() *HeuristicLearner {
	return &HeuristicLearner{
		// Markers are matched on accent-folded text, so "cómo" and "como" both count.
		reasoningMarkers: toSet("why", "because", "how", "porque", "como"),
		reasoningPhrases: []string{"por que", "para que"},
		directiveVerbs: toSet(
			"do", "define", "prioritize", "list", "summarize", "steps", "plan",
			"haz", "hacer", "define", "prioriza", "priorizar", "lista", "enumera",
			"resume", "resumir", "pasos", "planifica", "organiza",
		),
	}
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Learn analyses up to MaxHistory messages. An empty history is neutral.
func (h *HeuristicLearner) Learn(messages []string) PreferenceBias {
	if len(messages) > MaxHistory {
		messages = messages[:MaxHistory]
	}
	text := strings.TrimSpace(strings.Join(messages, "\n"))
	if text == "" {
		return NeutralBias()
	}

	lower := fold(text)
	numericCount := len(numericToken.FindAllString(lower, -1))

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	whyCount, directive := 0, false
	for _, w := range words {
		if h.reasoningMarkers[w] {
			whyCount++
		}
		if h.directiveVerbs[w] {
			directive = true
		}
	}
	for _, phrase := range h.reasoningPhrases {
		whyCount += strings.Count(lower, phrase)
	}

	b := NeutralBias()
	if float64(numericCount) > 1.5*float64(whyCount) {
		b.NumericBias = 1.08
	}
	if float64(whyCount) > 1.3*float64(numericCount) {
		b.NarrativeBias = 1.06
	}
	if directive {
		b.ToneFactor = 1.05
	}
	switch n := utf8.RuneCountInString(text); {
	case n > 1500:
		b.DetailFactor = 1.05
	case n < 300:
		b.DetailFactor = 0.98
	}

	dominant := b.NumericBias
	switch {
	case b.NumericBias > b.NarrativeBias:
		b.Style = StyleNumeric
	case b.NarrativeBias > b.NumericBias:
		b.Style = StyleNarrative
		dominant = b.NarrativeBias
	}
	b.Factor = dominant * b.ToneFactor * b.DetailFactor
	return b
}
