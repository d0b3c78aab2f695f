package main

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/cache"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/config"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/database"
	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/leaderboard"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/matching"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/middleware"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/ratelimit"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/security"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/summary"
)

const version = "1.0.0"

// app owns every long-lived dependency of the server.
type app struct {
	cfg     *config.Config
	logger  *monitoring.Logger
	metrics *monitoring.Metrics

	db       *database.DB
	repo     *database.Repository
	redis    *ratelimit.RedisClient
	results  cache.ResultCache
	limiter  *ratelimit.RateLimiter
	engine   *affinity.Engine
	learner  affinity.BiasLearner
	summary  summary.Summarizer
	matching *matching.Service
	rankings *leaderboard.Service
	gzip     *middleware.Compression
}

func newApp(cfg *config.Config, logger *monitoring.Logger) (*app, error) {
	metrics, err := monitoring.NewMetrics()
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to register metrics", err)
	}

	db, err := database.NewDB(cfg.Storage.DataDir)
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to open database", err)
	}

	overrides, err := affinity.NewCalibrationStore(cfg.Scoring.CalibrationDir).LoadAll()
	if err != nil {
		db.Close()
		return nil, apperrors.NewConfigurationError("failed to load calibration", err)
	}
	engine := affinity.NewEngine(overrides)

	// A Redis outage at startup degrades to in-process backends.
	rc, err := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory cache and limiter", "error", err)
	}

	var results cache.ResultCache
	if rc.IsEnabled() {
		results = cache.NewRedisCache(rc.GetClient(), cfg.Cache.TTL, metrics)
	} else {
		results = cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL, metrics)
	}

	limiter := ratelimit.NewRateLimiter(rc, ratelimit.Config{
		IPLimitPerMin:   cfg.RateLimit.PerMinute,
		BurstMultiplier: cfg.RateLimit.BurstMultiplier,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	}, metrics)

	summarizer := summary.New(summary.Config{
		APIKey:   cfg.Summary.APIKey,
		Endpoint: cfg.Summary.Endpoint,
		Model:    cfg.Summary.Model,
		Timeout:  cfg.Summary.Timeout,
	}, metrics, logger)

	repo := database.NewRepository(db)
	learner := affinity.NewHeuristicLearner()

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		db:      db,
		repo:    repo,
		redis:   rc,
		results: results,
		limiter: limiter,
		engine:  engine,
		learner: learner,
		summary: summarizer,
		rankings: leaderboard.NewService(repo,
			leaderboard.NewCache(cfg.Cache.RankingSize, cfg.Cache.RankingTTL)),
		gzip: middleware.NewCompression(middleware.DefaultCompressionConfig()),
		matching: matching.NewService(matching.Deps{
			Engine:     engine,
			Store:      repo,
			Cache:      results,
			BiasCache:  cache.NewBiasCache(cfg.Cache.BiasSize, cfg.Cache.BiasTTL),
			Learner:    learner,
			Summarizer: summarizer,
			Composer:   matching.NewComposer(cfg.Scoring.SourceTimeout, metrics, logger),
			Metrics:    metrics,
			Logger:     logger,
		}),
	}, nil
}

func (a *app) router() *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(a.cfg.Server.AllowedOrigins) == 0 || a.cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = a.cfg.Server.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-Request-ID")

	secure := security.Config{
		RequestTimeout:    a.cfg.Server.RequestTimeout,
		MaxBodyBytes:      a.cfg.Server.MaxBodyBytes,
		MaxIdentityLength: security.DefaultConfig().MaxIdentityLength,
		HSTS:              a.cfg.Server.HSTS,
	}

	r.Use(security.RequestID())
	r.Use(cors.New(corsConfig))
	r.Use(security.Headers(secure))
	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	if a.cfg.Server.Gzip {
		r.Use(a.gzip.Handler())
	}
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	r.GET("/health", a.handleHealth)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	v1 := r.Group("/v1")
	v1.Use(
		a.limiter.IPRateLimitMiddleware(),
		security.RequestTimeout(secure.RequestTimeout),
		security.LimitBody(secure.MaxBodyBytes),
		security.ValidateContentType(),
	)
	{
		identity := security.IdentityParams(secure.MaxIdentityLength, "identity")
		pair := security.IdentityParams(secure.MaxIdentityLength, "subject", "counterpart")

		v1.GET("/contexts", a.handleContexts)
		v1.POST("/affinity/score", a.handleScore)
		v1.POST("/affinity", a.handleCompute)
		v1.GET("/affinity/:subject/:counterpart/:context", pair, a.handleLookup)
		v1.GET("/rankings/:subject", security.IdentityParams(secure.MaxIdentityLength, "subject"), a.handleRankings)
		v1.GET("/channel/:identity", identity, a.handleChannel)
		v1.PUT("/assessments/:identity", identity, a.handlePutAssessment)
		v1.POST("/messages/:identity", identity, a.handleAddMessage)
	}

	return r
}

func (a *app) close() {
	var errs []error
	a.limiter.Close()
	errs = append(errs, a.redis.Close(), a.db.Close())
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Failed to release resources", "error", err)
	}
}

// healthChecks probes storage and reports the optional backends.
func (a *app) healthChecks(ctx context.Context) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	healthy := true
	checks := map[string]any{
		"cache":      a.results.Name(),
		"rate_limit": a.limiter.Stats(),
		"database":   "ok",
		"redis":      "disabled",
		"summary":    "disabled",
		"rankings":   a.rankings.CacheStats(),
		"gzip":       a.gzip.Stats(),
	}

	if err := a.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	checks["database_pool"] = a.db.PoolStats()
	if a.redis.IsEnabled() {
		checks["redis"] = a.redis.PoolStats()
		if err := a.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
		}
	}
	if c, ok := a.summary.(*summary.Client); ok {
		checks["summary"] = c.Breaker().Stats()
	}
	return checks, healthy
}
