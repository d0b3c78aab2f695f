package cache

import (
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// BiasCache holds learned preference hints per identity. Entries are advisory and may be
// evicted at any time.
type BiasCache struct {
	lru *expirable.LRU[string, affinity.PreferenceBias]
}

// NewBiasCache creates a hint cache.
func NewBiasCache(size int, ttl time.Duration) *BiasCache {
	if size <= 0 {
		size = 4096
	}
	return &BiasCache{lru: expirable.NewLRU[string, affinity.PreferenceBias](size, nil, ttl)}
}

// Get returns the cached hint for identity.
func (b *BiasCache) Get(identity string) (affinity.PreferenceBias, bool) {
	return b.lru.Get(identity)
}

// Put stores a hint.
func (b *BiasCache) Put(identity string, bias affinity.PreferenceBias) {
	b.lru.Add(identity, bias)
}

// Forget drops the hint, typically after new messages arrive.
func (b *BiasCache) Forget(identity string) {
	b.lru.Remove(identity)
}
