package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/resilience"
	"github.com/pkg/errors"
)

const (
	// DefaultEndpoint is the Anthropic messages endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultModel is used when the config leaves the model empty.
	DefaultModel = "claude-sonnet-4-20250514"
	// APIVersion is the messages API version header value.
	APIVersion = "2023-06-01"

	apiName   = "summary"
	maxTokens = 300
)

// Config configures the HTTP summarizer.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Content []content `json:"content"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Client calls a messages-style text generation API behind a circuit breaker.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
	logger     *monitoring.Logger
}

// New returns Disabled when cfg has no API key.
func New(cfg Config, metrics *monitoring.Metrics, logger *monitoring.Logger) Summarizer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Disabled{}
	}
	return NewClient(cfg, metrics, logger)
}

// NewClient creates an HTTP summarizer.
func NewClient(cfg Config, metrics *monitoring.Metrics, logger *monitoring.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error")
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             apiName,
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
			OnStateChange: func(name string, _, to resilience.CircuitBreakerState) {
				metrics.SetBreakerState(name, int(to))
			},
		}),
		retry:  retry,
		logger: logger.Component(apiName),
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Summarize asks the API for a narrative about req.
func (c *Client) Summarize(ctx context.Context, req Request) (text string, err error) {
	ctx, span := monitoring.StartSpan(ctx, "summary.Summarize")
	defer func() { monitoring.EndSpan(span, err) }()

	err = c.breaker.Call(func() error {
		return resilience.RetryWithConfig(ctx, c.retry, func(ctx context.Context) error {
			var callErr error
			text, callErr = c.sendRequest(ctx, buildPrompt(req))
			return callErr
		})
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) sendRequest(ctx context.Context, prompt string) (responseText string, err error) {
	start := time.Now()
	status := 0
	defer func() {
		c.logger.ExternalLogger(apiName, c.endpoint, status, time.Since(start), err)
	}()

	reqBody, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", APIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer apperrors.SafeClose(resp.Body, "summary response body")
	status = resp.StatusCode

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		if resilience.IsRetryableHTTPStatus(resp.StatusCode) {
			return "", apperrors.NewExternalAPIError(apiName, cause)
		}
		return "", apperrors.NewConfigurationError("summary API rejected the request", cause)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to parse summary response")
	}
	for _, part := range parsed.Content {
		if part.Type == "text" || part.Type == "" {
			if t := strings.TrimSpace(part.Text); t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no text content in summary response")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
