package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "info").Component("matching")

	logger.ScoreLogger("ana", "luis", "execution", 104.2, "Functional", 3*time.Millisecond, true)
	logger.CacheLogger("memory", "get", "k", true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug lines are filtered at info")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Affinity Computed", entry["msg"])
	assert.Equal(t, "matching", entry["component"])
	assert.Equal(t, "ana", entry["subject"])
	assert.Equal(t, true, entry["cache_hit"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
}

func TestExternalLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "info")

	logger.ExternalLogger("summary", "https://example.test", 200, time.Millisecond, nil)
	logger.ExternalLogger("summary", "https://example.test", 503, time.Millisecond, errors.New("unavailable"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"error":"unavailable"`)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
		m.ObserveScore("execution", "warm", 100)
		m.IncUnavailable("no_profile_data")
		m.IncCacheHit("memory")
		m.IncCacheMiss("memory")
		m.IncSubFetchFailure("growth")
		m.IncSummary("skipped")
		m.IncRateLimit("blocked")
		m.SetBreakerState("summary", 1)
	})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRecord(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.ObserveScore("execution", "warm", 104.2)
	m.ObserveScore("execution", "warm", 99)
	m.IncUnavailable("no_profile_data")
	m.IncSubFetchFailure("collaboration")
	m.SetBreakerState("summary", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scores.WithLabelValues("execution", "warm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unavailable.WithLabelValues("no_profile_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subFetchErrors.WithLabelValues("collaboration")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("summary")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rowi_affinity_composite_score_bucket")
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := NewMetrics()
	require.NoError(t, err)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(MonitoringMiddleware(m, NewLoggerWithWriter(&buf, "info")))
	r.GET("/v1/channel/:identity", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/v1/channel/ana", "/v1/channel/luis", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/channel/:identity", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 3, strings.Count(buf.String(), "HTTP Request"))
}
