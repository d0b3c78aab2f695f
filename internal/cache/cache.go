package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
)

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache: miss")

// Entry is a persisted affinity result for one (subject, counterpart, context) triple.
type Entry struct {
	Subject     string           `json:"subject"`
	Counterpart string           `json:"counterpart"`
	Context     affinity.Context `json:"context"`
	Result      affinity.Result  `json:"result"`
	ComputedAt  time.Time        `json:"computed_at"`
}

// Key identifies an entry.
func (e Entry) Key() string {
	return Key(e.Subject, e.Counterpart, e.Context)
}

// ResultCache stores the most recent result per pair and context. Concurrent writers
// race and the last write wins.
type ResultCache interface {
	Get(ctx context.Context, subject, counterpart string, c affinity.Context) (Entry, error)
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, subject, counterpart string, c affinity.Context) error
	Name() string
}

// Key builds the storage key for a triple.
func Key(subject, counterpart string, c affinity.Context) string {
	return fmt.Sprintf("affinity:%s:%s:%s", subject, counterpart, c)
}
