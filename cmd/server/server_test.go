package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/config"
	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/leaderboard"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/matching"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Mode:           gin.TestMode,
			AllowedOrigins: []string{"*"},
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   64 << 10,
			Gzip:           true,
		},
		Storage: config.StorageConfig{DataDir: dir},
		Cache: config.CacheConfig{
			Size: 100, TTL: time.Minute,
			BiasSize: 100, BiasTTL: time.Minute,
			RankingSize: 100, RankingTTL: time.Minute,
		},
		RateLimit: config.RateLimitConfig{PerMinute: 1000, BurstMultiplier: 1, CleanupInterval: time.Hour},
		Scoring:   config.ScoringConfig{CalibrationDir: dir, SourceTimeout: time.Second},
		Log:       config.LogConfig{Level: "error"},
	}
}

func setupRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := newApp(cfg, monitoring.NewLoggerWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a.router()
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func uniform(keys []string, v float64) map[string]any {
	m := make(map[string]any, len(keys))
	for _, k := range keys {
		m[k] = v
	}
	return m
}

func profile(competency, outcome float64) types.ProfilePayload {
	return types.ProfilePayload{
		Competencies: uniform(affinity.CompetencyKeys, competency),
		Outcomes:     uniform(affinity.OutcomeKeys, outcome),
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET /health returns OK status", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST /health is not routed", method: http.MethodPost, expectedStatus: http.StatusNotFound},
		{name: "DELETE /health is not routed", method: http.MethodDelete, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, "/health", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	w := do(t, r, http.MethodGet, "/health", nil)
	health := decode[types.HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, version, health.Version)
	assert.Equal(t, "memory", health.Checks["cache"])
	assert.Equal(t, "disabled", health.Checks["summary"])
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	do(t, r, http.MethodGet, "/health", nil)
	w := do(t, r, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rowi_affinity_http_requests_total")
}

func TestScoreEndpoint(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	w := do(t, r, http.MethodPost, "/v1/affinity/score", types.ScoreRequest{
		Subject:     profile(100, 100),
		Counterpart: profile(100, 100),
		Context:     "Ejecución",
		Closeness:   "close",
		Detailed:    true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[types.ScoreResponse](t, w)
	assert.Equal(t, affinity.ContextExecution, resp.Result.Context)
	assert.InDelta(t, 104.24835, resp.Result.Composite, 0.1)
	assert.Equal(t, 77, resp.Result.Heat)
	assert.Equal(t, affinity.LevelFunctional, resp.Result.Level)
	assert.Equal(t, affinity.BandWarm, resp.Result.Band)
	assert.Equal(t, affinity.StyleBalanced, resp.Bias.Style)
	require.NotNil(t, resp.Details)
	assert.InDelta(t, 119.25, resp.Details.Growth.Score, 1e-9)
}

func TestScoreEndpointUnknownContextFallsBack(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	w := do(t, r, http.MethodPost, "/v1/affinity/score", types.ScoreRequest{
		Subject:     profile(100, 100),
		Counterpart: profile(100, 100),
		Context:     "karaoke",
		Closeness:   "sort of",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[types.ScoreResponse](t, w)
	assert.Equal(t, affinity.ContextExecution, resp.Result.Context)
	assert.Equal(t, affinity.ClosenessNeutral, resp.Result.Closeness)
}

func TestScoreEndpointErrors(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	tests := []struct {
		name             string
		body             any
		expectedStatus   int
		expectedCategory apperrors.ErrorCategory
	}{
		{
			name:             "malformed JSON",
			body:             `{"subject": `,
			expectedStatus:   http.StatusBadRequest,
			expectedCategory: apperrors.CategoryValidation,
		},
		{
			name:             "counterpart without data",
			body:             types.ScoreRequest{Subject: profile(100, 100)},
			expectedStatus:   http.StatusUnprocessableEntity,
			expectedCategory: apperrors.CategoryNotAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/v1/affinity/score", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			resp := decode[apperrors.Response](t, w)
			assert.Equal(t, tt.expectedCategory, resp.Category)
		})
	}
}

func TestStoredAffinityFlow(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	ana := types.AssessmentRequest{ProfilePayload: profile(110, 100)}
	ana.Style = "Strategist"
	luis := types.AssessmentRequest{
		ProfilePayload: profile(95, 105),
		Contact:        affinity.ContactMethods{Instagram: "@luis", Website: "luis.dev"},
	}

	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/v1/assessments/ana", ana).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/v1/assessments/luis", luis).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/v1/messages/ana",
		types.MessageRequest{Body: "Why do we do this? Because it matters."}).Code)

	w := do(t, r, http.MethodPost, "/v1/affinity", matching.Request{
		Subject: "ana", Counterpart: "luis", Context: "relationship", Closeness: "far", Entitled: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	insight := decode[matching.Insight](t, w)
	assert.True(t, insight.Available)
	require.NotNil(t, insight.Result)
	assert.Equal(t, affinity.ContextRelationship, insight.Result.Context)
	assert.Equal(t, affinity.ClosenessFar, insight.Result.Closeness)
	assert.Equal(t, affinity.StyleNarrative, insight.Bias.Style)
	assert.Equal(t, "instagram", insight.Channel.Name)
	assert.False(t, insight.SummaryGenerated)
	assert.NotEmpty(t, insight.Summary)

	w = do(t, r, http.MethodGet, "/v1/affinity/ana/luis/relationship", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cached := decode[matching.Insight](t, w)
	assert.True(t, cached.Cached)
	assert.Equal(t, insight.Result.Composite, cached.Result.Composite)

	w = do(t, r, http.MethodGet, "/v1/channel/luis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "instagram", decode[affinity.Channel](t, w).Name)
}

func TestStoredAffinityErrors(t *testing.T) {
	r := setupRouter(t, testConfig(t))
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/v1/assessments/ana",
		types.AssessmentRequest{ProfilePayload: profile(100, 100)}).Code)

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
	}{
		{"counterpart never assessed", http.MethodPost, "/v1/affinity", matching.Request{Subject: "ana", Counterpart: "ghost"}, http.StatusUnprocessableEntity},
		{"missing identities", http.MethodPost, "/v1/affinity", map[string]string{"context": "decision"}, http.StatusBadRequest},
		{"unknown context in lookup", http.MethodGet, "/v1/affinity/ana/luis/karaoke", nil, http.StatusBadRequest},
		{"lookup before compute", http.MethodGet, "/v1/affinity/ana/luis/decision", nil, http.StatusNotFound},
		{"channel of unknown identity", http.MethodGet, "/v1/channel/ghost", nil, http.StatusNotFound},
		{"empty message", http.MethodPost, "/v1/messages/ana", map[string]string{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}

	w := do(t, r, http.MethodPost, "/v1/affinity", matching.Request{Subject: "ana", Counterpart: "ghost"})
	insight := decode[matching.Insight](t, w)
	assert.False(t, insight.Available)
	assert.Equal(t, matching.ReasonNoProfileData, insight.Reason)
}

func TestContextsEndpoint(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	w := do(t, r, http.MethodGet, "/v1/contexts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Contexts []affinity.ContextProfile `json:"contexts"`
	}](t, w)
	require.Len(t, body.Contexts, len(affinity.Contexts))
	for _, p := range body.Contexts {
		assert.NoError(t, p.Validate(), p.Context)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.PerMinute = 2
	r := setupRouter(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/v1/contexts", nil).Code)
	}

	w := do(t, r, http.MethodGet, "/v1/contexts", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health and metrics are outside the limited group.
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/health", nil).Code)
}

func TestCORSHeaders(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.rowi.io")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRankingsEndpoint(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	for id, p := range map[string]types.ProfilePayload{
		"ana":   profile(110, 100),
		"luis":  profile(120, 115),
		"marta": profile(85, 90),
	} {
		require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/v1/assessments/"+id,
			types.AssessmentRequest{ProfilePayload: p}).Code)
	}

	w := do(t, r, http.MethodGet, "/v1/rankings/ana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[leaderboard.Response](t, w).Entries)

	for _, cp := range []string{"luis", "marta"} {
		w := do(t, r, http.MethodPost, "/v1/affinity", matching.Request{Subject: "ana", Counterpart: cp, Context: "execution"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/v1/affinity", matching.Request{Subject: "ana", Counterpart: "luis", Context: "decision"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The compute above invalidated the cached empty ranking.
	w = do(t, r, http.MethodGet, "/v1/rankings/ana", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[leaderboard.Response](t, w)
	require.Len(t, all.Entries, 3)
	for i := 1; i < len(all.Entries); i++ {
		assert.GreaterOrEqual(t, all.Entries[i-1].Composite, all.Entries[i].Composite)
	}

	w = do(t, r, http.MethodGet, "/v1/rankings/ana?context=Ejecuci%C3%B3n&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	top := decode[leaderboard.Response](t, w)
	require.Len(t, top.Entries, 1)
	assert.Equal(t, affinity.ContextExecution, top.Entries[0].Context)
	assert.Equal(t, 1, top.Entries[0].Rank)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/v1/rankings/ana?context=karaoke", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/v1/rankings/ana?limit=zero", nil).Code)
}

func TestRequestHardening(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		want        int
	}{
		{"form body", http.MethodPost, "/v1/affinity/score", "a=b", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"body over the cap", http.MethodPost, "/v1/messages/ana", `{"body":"` + strings.Repeat("x", 70<<10) + `"}`, "application/json", http.StatusRequestEntityTooLarge},
		{"identity with spaces", http.MethodGet, "/v1/channel/ana%20perez", "", "", http.StatusBadRequest},
		{"identity too long", http.MethodGet, "/v1/rankings/" + strings.Repeat("a", 200), "", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, string(apperrors.CategoryValidation), decode[map[string]any](t, w)["category"])
		})
	}
}

func TestResponseHeaders(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/contexts", nil)
	req.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-7", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = do(t, r, http.MethodGet, "/v1/affinity/ana/luis/karaoke", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	generated := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, decode[apperrors.Response](t, w).RequestID)
}

func TestGzipResponses(t *testing.T) {
	r := setupRouter(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/contexts", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var body struct {
		Contexts []affinity.ContextProfile `json:"contexts"`
	}
	require.NoError(t, json.NewDecoder(zr).Decode(&body))
	assert.Len(t, body.Contexts, len(affinity.Contexts))
}
