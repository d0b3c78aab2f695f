package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory groups errors by how callers should react to them.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotAvailable  ErrorCategory = "not_available"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryExternalAPI   ErrorCategory = "external_api"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError is an errbuilder error annotated with the category and HTTP status the
// API layer reports.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory
	HTTPStatus int
	Timestamp  time.Time
	StackTrace string
	// Fields mirrors the builder details in a form safe to return to clients.
	Fields map[string]string
}

// Response is the JSON body written for an AppError.
type Response struct {
	Error     string            `json:"error"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (e *AppError) code() string {
	switch e.Category {
	case CategoryNotAvailable:
		return "NOT_AVAILABLE"
	case CategoryNotFound:
		return "NOT_FOUND"
	case CategoryExternalAPI:
		return "EXTERNAL_API_ERROR"
	}

	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		return "VALIDATION_ERROR"
	case errbuilder.CodeUnavailable:
		return "NETWORK_ERROR"
	case errbuilder.CodeDeadlineExceeded:
		return "TIMEOUT_ERROR"
	case errbuilder.CodeResourceExhausted:
		return "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeInternal:
		return "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		return "CONFIGURATION_ERROR"
	}
	return "UNKNOWN_ERROR"
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.code(), e.ErrBuilder.Msg)
}

func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Response renders the error for an HTTP client. Causes are never exposed.
func (e *AppError) Response(requestID string) Response {
	resp := Response{
		Error:     e.code(),
		Category:  e.Category,
		Message:   e.ErrBuilder.Msg,
		RequestID: requestID,
		Timestamp: e.Timestamp,
	}
	if e.Category == CategoryInternal {
		return resp
	}
	resp.Details = e.Fields
	return resp
}

// NewAppError wraps builder with a category and status.
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

func newDetailedError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int, fields map[string]string) *AppError {
	appErr := NewAppError(withDetails(builder, fields), category, httpStatus)
	if len(fields) > 0 {
		appErr.Fields = fields
	}
	return appErr
}

func withDetails(builder *errbuilder.ErrBuilder, details map[string]string) *errbuilder.ErrBuilder {
	if len(details) == 0 {
		return builder
	}
	errorMap := errbuilder.ErrorMap{}
	for key, value := range details {
		errorMap.Set(key, errors.New(value))
	}
	return builder.WithDetails(errbuilder.NewErrDetails(errorMap))
}

// NewValidationError reports a malformed request. Field-level problems go in fields.
func NewValidationError(message string, fields map[string]string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	return newDetailedError(builder, CategoryValidation, http.StatusBadRequest, fields)
}

// NewUnsupportedMediaTypeError reports a request body that is not JSON.
func NewUnsupportedMediaTypeError(contentType string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("Unsupported content type")

	return newDetailedError(builder, CategoryValidation, http.StatusUnsupportedMediaType,
		map[string]string{"content_type": contentType})
}

// NewRequestTooLargeError reports a request body over limit bytes.
func NewRequestTooLargeError(limit int64) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("Request body too large")

	return newDetailedError(builder, CategoryValidation, http.StatusRequestEntityTooLarge,
		map[string]string{"limit_bytes": fmt.Sprintf("%d", limit)})
}

// NewNotAvailableError reports that a score cannot be computed for lack of profile data.
// It is not a failure of the service.
func NewNotAvailableError(reason string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Affinity not available")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryNotAvailable, http.StatusUnprocessableEntity,
		map[string]string{"reason": reason})
}

// NewNotFoundError reports a missing stored resource.
func NewNotFoundError(resource string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("%s not found", resource))

	return newDetailedError(builder, CategoryNotFound, http.StatusNotFound,
		map[string]string{"resource": resource})
}

// NewNetworkError reports a failed connection to a collaborator.
func NewNetworkError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryNetwork, http.StatusBadGateway)
}

// NewTimeoutError reports a deadline hit while waiting on a collaborator.
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError reports a rejected request with the wait hint.
func NewRateLimitError(retryAfter time.Duration) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded")

	return newDetailedError(builder, CategoryRateLimit, http.StatusTooManyRequests,
		map[string]string{"retry_after": retryAfter.String()})
}

// NewExternalAPIError reports a failing remote service such as the summary provider.
func NewExternalAPIError(apiName string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("%s API error", apiName))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryExternalAPI, http.StatusBadGateway,
		map[string]string{"api_name": apiName})
}

// NewInternalError reports an unexpected failure. The message is logged, not returned.
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := newDetailedError(builder, CategoryInternal, http.StatusInternalServerError,
		map[string]string{"internal_details": message})
	if gin.Mode() == gin.DebugMode {
		appErr.StackTrace = captureStackTrace()
	}
	return appErr
}

// NewConfigurationError reports invalid settings or calibration files.
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryConfiguration, http.StatusInternalServerError,
		map[string]string{"config_details": message})
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler writes the last error attached to the gin context as a structured response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := ToAppError(c.Errors.Last().Err)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr.Response(c.GetHeader("X-Request-ID")))
	}
}

// RecoveryHandler converts panics into internal errors.
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		appErr := NewInternalError(fmt.Sprintf("panic recovered: %v", recovered), fmt.Errorf("%v", recovered))
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response(c.GetHeader("X-Request-ID")))
	})
}

// ToAppError classifies any error. Already classified errors pass through.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") {
		return NewNetworkError("Network connection failed", err)
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
		return NewTimeoutError("Request timeout", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs err with request context at a level matching its category.
func LogError(c *gin.Context, err *AppError) {
	entry := slog.With(
		"error_category", err.Category,
		"error_code", err.code(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	)

	msg := err.ErrBuilder.Msg
	attrs := []any{}
	if len(err.Fields) > 0 {
		attrs = append(attrs, "details", err.Fields)
	}
	if cause := err.ErrBuilder.Unwrap(); cause != nil {
		attrs = append(attrs, "cause", cause)
	}

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotAvailable, CategoryNotFound:
		entry.Warn(msg, attrs...)
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI:
		entry.Info(msg, attrs...)
	default:
		entry.Error(msg, attrs...)
	}

	if err.StackTrace != "" && gin.Mode() == gin.DebugMode {
		entry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// IsRetryableError reports whether a collaborator call failing with err should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	switch ToAppError(err).Category {
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI, CategoryRateLimit:
		return !errors.Is(err, context.Canceled)
	default:
		return false
	}
}

// GetRetryDelay returns the backoff for attempt (1-based) given the failure kind.
func GetRetryDelay(err error, attempt int) time.Duration {
	baseDelay := time.Duration(100*attempt) * time.Millisecond

	switch ToAppError(err).Category {
	case CategoryRateLimit:
		return time.Duration(attempt*attempt) * time.Second
	case CategoryNetwork, CategoryTimeout:
		return baseDelay * time.Duration(1<<attempt)
	case CategoryExternalAPI:
		return baseDelay * time.Duration(attempt)
	default:
		return baseDelay
	}
}

// SafeClose closes a resource and logs any error.
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource", "resource", resourceName, "error", err)
	}
}
