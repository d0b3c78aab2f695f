// Package types holds the request and response bodies of the HTTP API.
package types

import (
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
)

// ProfilePayload is a loosely typed profile as clients send it. Values may be numbers
// or numeric strings; unknown keys are ignored.
type ProfilePayload struct {
	Competencies map[string]any `json:"competencies"`
	Outcomes     map[string]any `json:"outcomes"`
	Talents      map[string]any `json:"talents"`
	Style        string         `json:"style"`
}

// Bundle coerces the payload into an engine bundle.
func (p ProfilePayload) Bundle() affinity.Bundle {
	return affinity.Bundle{
		Competencies: affinity.NewCompetencyProfile(p.Competencies),
		Outcomes:     affinity.NewOutcomeProfile(p.Outcomes),
		Talents:      affinity.NewTalentProfile(p.Talents),
		Style:        affinity.ParseCognitiveStyle(p.Style),
	}
}

// ScoreRequest scores two inline profiles without touching storage.
type ScoreRequest struct {
	Subject     ProfilePayload `json:"subject"`
	Counterpart ProfilePayload `json:"counterpart"`
	Context     string         `json:"context"`
	Closeness   string         `json:"closeness"`
	// Messages is the subject's recent message history, newest first.
	Messages []string `json:"messages"`
	Detailed bool     `json:"detailed"`
}

// ScoreResponse is the stateless scoring result.
type ScoreResponse struct {
	Result  affinity.Result         `json:"result"`
	Bias    affinity.PreferenceBias `json:"bias"`
	Details *affinity.Details       `json:"details,omitempty"`
}

// AssessmentRequest stores or replaces the profile of an identity.
type AssessmentRequest struct {
	ProfilePayload
	Contact affinity.ContactMethods `json:"contact"`
}

// MessageRequest appends one message to an identity's history.
type MessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Checks    map[string]any `json:"checks,omitempty"`
}

// NewHealthResponse stamps the current time.
func NewHealthResponse(status, version string, checks map[string]any) HealthResponse {
	return HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}
