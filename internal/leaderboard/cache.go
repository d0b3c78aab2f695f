package leaderboard

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/database"
)

// Cache keeps the stored results of recently ranked subjects.
type Cache struct {
	lru *expirable.LRU[string, []*database.StoredResult]
}

// NewCache creates a ranking cache holding size subjects for ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{lru: expirable.NewLRU[string, []*database.StoredResult](size, nil, ttl)}
}

func (c *Cache) Get(subject string) ([]*database.StoredResult, bool) {
	results, ok := c.lru.Get(subject)
	if ok {
		slog.Debug("Ranking cache hit", "subject", subject)
	}
	return results, ok
}

func (c *Cache) Set(subject string, results []*database.StoredResult) {
	c.lru.Add(subject, results)
}

func (c *Cache) Invalidate(subject string) {
	c.lru.Remove(subject)
}

// Stats reports cache occupancy for health checks.
func (c *Cache) Stats() map[string]any {
	return map[string]any{"subjects": c.lru.Len()}
}
