package monitoring

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rowi_affinity"

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	scores          *prometheus.CounterVec
	composite       *prometheus.HistogramVec
	unavailable     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	subFetchErrors  *prometheus.CounterVec
	summaries       *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// NewMetrics registers every collector on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Affinity results computed, by context and band.",
		}, []string{"context", "band"}),
		composite: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "composite_score",
			Help:      "Distribution of composite scores on the 0-135 scale.",
			Buckets:   []float64{67.5, 82, 92, 108, 118, 135},
		}, []string{"context"}),
		unavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unavailable_total",
			Help:      "Pairs that could not be scored, by reason.",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by backend and result.",
		}, []string{"backend", "result"}),
		subFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subfetch_failures_total",
			Help:      "Sub-computations or collaborator fetches that failed.",
		}, []string{"source"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Narrative summaries by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_events_total",
			Help:      "Rate limiter blocks and fallbacks.",
		}, []string{"event"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.requestDuration, m.scores, m.composite, m.unavailable,
		m.cacheLookups, m.subFetchErrors, m.summaries, m.rateLimited, m.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveScore records a computed result.
func (m *Metrics) ObserveScore(context, band string, composite float64) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(context, band).Inc()
	m.composite.WithLabelValues(context).Observe(composite)
}

// IncUnavailable records a pair that could not be scored.
func (m *Metrics) IncUnavailable(reason string) {
	if m == nil {
		return
	}
	m.unavailable.WithLabelValues(reason).Inc()
}

// IncCacheHit records a cache hit on backend.
func (m *Metrics) IncCacheHit(backend string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(backend, "hit").Inc()
}

// IncCacheMiss records a cache miss on backend.
func (m *Metrics) IncCacheMiss(backend string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(backend, "miss").Inc()
}

// IncSubFetchFailure records a failed sub-computation or collaborator fetch.
func (m *Metrics) IncSubFetchFailure(source string) {
	if m == nil {
		return
	}
	m.subFetchErrors.WithLabelValues(source).Inc()
}

// IncSummary records a summary outcome: generated, fallback, or skipped.
func (m *Metrics) IncSummary(outcome string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(outcome).Inc()
}

// IncRateLimit records a rate limiter event: blocked, redis_error, or fallback.
func (m *Metrics) IncRateLimit(event string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(event).Inc()
}

// SetBreakerState records the state of a named circuit breaker.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}
