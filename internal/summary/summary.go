// Package summary produces the optional narrative shown next to an affinity result.
// The score never depends on it.
package summary

import (
	"context"
	"errors"
	"strings"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
)

// FallbackText is shown whenever a generated summary is unavailable or not allowed.
const FallbackText = "A personalized summary is not available for this pair right now. The score above reflects both profiles in the selected context."

// ErrDisabled is returned by a summarizer that has no backend configured.
var ErrDisabled = errors.New("summary: no summarizer configured")

// Request carries the presentation fields of a result and the display names of the pair.
type Request struct {
	SubjectName     string           `json:"subject_name"`
	CounterpartName string           `json:"counterpart_name"`
	Context         affinity.Context `json:"context"`
	Heat            int              `json:"heat"`
	Level           affinity.Level   `json:"level"`
	Band            affinity.Band    `json:"band"`
	Channel         string           `json:"channel,omitempty"`
}

// NewRequest builds a request from a computed result.
func NewRequest(subjectName, counterpartName string, res affinity.Result) Request {
	return Request{
		SubjectName:     displayName(subjectName, "You"),
		CounterpartName: displayName(counterpartName, "your counterpart"),
		Context:         res.Context,
		Heat:            res.Heat,
		Level:           res.Level,
		Band:            res.Band,
	}
}

func displayName(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}

// Summarizer turns a scored pair into a short narrative.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Disabled is the summarizer used when no API key is configured.
type Disabled struct{}

// Summarize always fails with ErrDisabled.
func (Disabled) Summarize(context.Context, Request) (string, error) {
	return "", ErrDisabled
}
