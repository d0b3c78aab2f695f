package cache

import (
	"context"
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache keeps results in a bounded in-process LRU with a TTL.
type MemoryCache struct {
	lru     *expirable.LRU[string, Entry]
	metrics *monitoring.Metrics
}

// NewMemoryCache creates a cache of at most size entries that expire after ttl.
func NewMemoryCache(size int, ttl time.Duration, metrics *monitoring.Metrics) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		lru:     expirable.NewLRU[string, Entry](size, nil, ttl),
		metrics: metrics,
	}
}

func (m *MemoryCache) Name() string { return "memory" }

func (m *MemoryCache) Get(_ context.Context, subject, counterpart string, c affinity.Context) (Entry, error) {
	e, ok := m.lru.Get(Key(subject, counterpart, c))
	if !ok {
		m.metrics.IncCacheMiss(m.Name())
		return Entry{}, ErrMiss
	}
	m.metrics.IncCacheHit(m.Name())
	return e, nil
}

func (m *MemoryCache) Set(_ context.Context, e Entry) error {
	m.lru.Add(e.Key(), e)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, subject, counterpart string, c affinity.Context) error {
	m.lru.Remove(Key(subject, counterpart, c))
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}
