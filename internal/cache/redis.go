package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/redis/go-redis/v9"
)

// RedisCache shares results between instances through Redis.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *monitoring.Metrics
}

// NewRedisCache creates a cache on client. A zero ttl keeps entries until overwritten.
func NewRedisCache(client *redis.Client, ttl time.Duration, metrics *monitoring.Metrics) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, metrics: metrics}
}

func (r *RedisCache) Name() string { return "redis" }

func (r *RedisCache) Get(ctx context.Context, subject, counterpart string, c affinity.Context) (Entry, error) {
	data, err := r.client.Get(ctx, Key(subject, counterpart, c)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.metrics.IncCacheMiss(r.Name())
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode cached result: %w", err)
	}
	r.metrics.IncCacheHit(r.Name())
	return e, nil
}

func (r *RedisCache) Set(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := r.client.Set(ctx, e.Key(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, subject, counterpart string, c affinity.Context) error {
	if err := r.client.Del(ctx, Key(subject, counterpart, c)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
