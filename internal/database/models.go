package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
)

// Assessment is the stored psychometric profile of one identity.
type Assessment struct {
	Identity  string                  `json:"identity"`
	Bundle    affinity.Bundle         `json:"bundle"`
	Contact   affinity.ContactMethods `json:"contact"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Message is one message written by an identity.
type Message struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredResult is the persisted result of a pair under one context.
type StoredResult struct {
	ID          string           `json:"id"`
	Subject     string           `json:"subject"`
	Counterpart string           `json:"counterpart"`
	Context     affinity.Context `json:"context"`
	Result      affinity.Result  `json:"result"`
	ComputedAt  time.Time        `json:"computed_at"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(identity, body string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Identity:  identity,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

// NewStoredResult wraps r for persistence.
func NewStoredResult(subject, counterpart string, r affinity.Result) *StoredResult {
	return &StoredResult{
		ID:          uuid.New().String(),
		Subject:     subject,
		Counterpart: counterpart,
		Context:     r.Context,
		Result:      r,
		ComputedAt:  time.Now(),
	}
}
