// Package leaderboard ranks the stored matches of a subject, strongest first.
package leaderboard

import (
	"context"
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/database"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Source lists stored results of a subject ordered by composite, strongest first.
type Source interface {
	ResultsForSubject(ctx context.Context, subject string, limit int) ([]*database.StoredResult, error)
}

// Entry is one ranked counterpart.
type Entry struct {
	Rank        int              `json:"rank"`
	Counterpart string           `json:"counterpart"`
	Context     affinity.Context `json:"context"`
	Composite   float64          `json:"composite"`
	Heat        int              `json:"heat"`
	Level       affinity.Level   `json:"level"`
	Band        affinity.Band    `json:"band"`
	ComputedAt  time.Time        `json:"computed_at"`
}

// Response is the ranking of one subject.
type Response struct {
	Subject string            `json:"subject"`
	Context *affinity.Context `json:"context,omitempty"`
	Entries []Entry           `json:"entries"`
	Total   int               `json:"total"`
}

// Service builds rankings from stored results.
type Service struct {
	source Source
	cache  *Cache
}

// NewService creates a ranking service. A nil cache disables caching.
func NewService(source Source, cache *Cache) *Service {
	return &Service{source: source, cache: cache}
}

// Rankings returns up to limit counterparts of subject. When filter is set only results
// under that context are ranked. Ties keep the store order.
func (s *Service) Rankings(ctx context.Context, subject string, filter *affinity.Context, limit int) (*Response, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	results, err := s.results(ctx, subject)
	if err != nil {
		return nil, err
	}

	resp := &Response{Subject: subject, Context: filter, Entries: []Entry{}}
	for _, r := range results {
		if filter != nil && r.Context != *filter {
			continue
		}
		if len(resp.Entries) == limit {
			break
		}
		resp.Entries = append(resp.Entries, Entry{
			Rank:        len(resp.Entries) + 1,
			Counterpart: r.Counterpart,
			Context:     r.Context,
			Composite:   r.Result.Composite,
			Heat:        r.Result.Heat,
			Level:       r.Result.Level,
			Band:        r.Result.Band,
			ComputedAt:  r.ComputedAt,
		})
	}
	resp.Total = len(resp.Entries)
	return resp, nil
}

// Invalidate drops the cached ranking of subject, typically after a fresh compute.
func (s *Service) Invalidate(subject string) {
	if s.cache != nil {
		s.cache.Invalidate(subject)
	}
}

// CacheStats reports the ranking cache, or nil when caching is off.
func (s *Service) CacheStats() map[string]any {
	if s.cache == nil {
		return nil
	}
	return s.cache.Stats()
}

func (s *Service) results(ctx context.Context, subject string) ([]*database.StoredResult, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(subject); ok {
			return cached, nil
		}
	}

	// The filter is applied in memory, so read the widest page the store allows.
	results, err := s.source.ResultsForSubject(ctx, subject, MaxLimit*len(affinity.Contexts))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(subject, results)
	}
	return results, nil
}
