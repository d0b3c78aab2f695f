package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Config holds rate limiter settings.
type Config struct {
	IPLimitPerMin   int
	BurstMultiplier int
	CleanupInterval time.Duration
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   120,
		BurstMultiplier: 1,
		CleanupInterval: time.Hour,
	}
}

// Rate is a request budget per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter uses Redis when it is available and an in-process token bucket otherwise.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackMu       sync.Mutex
	fallbackLimiters map[string]*rate.Limiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter. redisClient may be nil or disabled.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*rate.Limiter),
		stop:             make(chan struct{}),
	}
	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
	} else {
		slog.Warn("Redis unavailable, rate limiting is per process")
	}

	go rl.cleanupLoop()
	return rl
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// AllowIP checks the per-minute budget of a client address.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("ratelimit:ip:%s", ip), Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute})
}

// Allow checks key against r.
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}

	if rl.redisLimiter != nil {
		res, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return res, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		rl.metrics.IncRateLimit("redis_error")
	}

	rl.metrics.IncRateLimit("fallback")
	return rl.allowFallback(key, r), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit * rl.config.BurstMultiplier,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      r.Limit,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	rl.fallbackMu.Lock()
	limiter, ok := rl.fallbackLimiters[key]
	if !ok {
		every := rate.Limit(float64(r.Limit) / r.Period.Seconds())
		limiter = rate.NewLimiter(every, r.Limit*rl.config.BurstMultiplier)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMu.Unlock()

	now := time.Now()
	allowed := limiter.AllowN(now, 1)
	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	res := &Result{
		Allowed:   allowed,
		Limit:     r.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(r.Period),
	}
	if !allowed {
		res.RetryAfter = time.Duration(float64(r.Period) / float64(r.Limit))
	}
	return res
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.fallbackMu.Lock()
			if len(rl.fallbackLimiters) > 1000 {
				slog.Info("Clearing fallback rate limiters", "count", len(rl.fallbackLimiters))
				rl.fallbackLimiters = make(map[string]*rate.Limiter)
			}
			rl.fallbackMu.Unlock()
		}
	}
}

// Stats describes the limiter for the health endpoint.
func (rl *RateLimiter) Stats() map[string]any {
	rl.fallbackMu.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMu.Unlock()

	return map[string]any{
		"redis_enabled":     rl.redisLimiter != nil,
		"fallback_limiters": fallbackCount,
		"redis_pool":        rl.redisClient.PoolStats(),
	}
}
