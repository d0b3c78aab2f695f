package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps a Redis connection that may be absent. Callers check IsEnabled and
// degrade to in-process behaviour when it is not.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient connects to addr. An empty addr yields a disabled client and no error;
// a failed ping yields a disabled client and the ping error.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("Redis address not configured, using in-memory fallbacks")
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
	})

	rc, err := WrapRedisClient(client)
	if err != nil {
		_ = client.Close()
		return &RedisClient{enabled: false, addr: addr}, err
	}
	return rc, nil
}

// WrapRedisClient adopts an existing client after checking it answers.
func WrapRedisClient(client *redis.Client) (*RedisClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr := client.Options().Addr
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed, using in-memory fallbacks", "addr", addr, "error", err)
		return &RedisClient{enabled: false, addr: addr}, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("Redis client connected", "addr", addr)
	return &RedisClient{client: client, enabled: true, addr: addr}, nil
}

// GetClient returns the underlying client, nil when disabled.
func (r *RedisClient) GetClient() *redis.Client {
	if r == nil || !r.enabled {
		return nil
	}
	return r.client
}

// IsEnabled reports whether Redis was reachable at start-up.
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.enabled
}

// HealthCheck pings the server.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.IsEnabled() {
		return fmt.Errorf("redis is disabled")
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (r *RedisClient) Close() error {
	if r.IsEnabled() && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PoolStats summarises the connection pool for the health endpoint.
func (r *RedisClient) PoolStats() map[string]any {
	if !r.IsEnabled() {
		return map[string]any{"enabled": false}
	}
	stats := r.client.PoolStats()
	return map[string]any{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}
}
