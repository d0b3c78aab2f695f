// Package security holds the request hardening middleware of the HTTP API.
package security

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
)

const RequestIDHeader = "X-Request-ID"

// Config holds security configuration.
type Config struct {
	RequestTimeout    time.Duration
	MaxBodyBytes      int64
	MaxIdentityLength int
	HSTS              bool
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    30 * time.Second,
		MaxBodyBytes:      1 << 20,
		MaxIdentityLength: 128,
	}
}

var identityPattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}._@:+-]*$`)

// ValidateIdentity checks an identity taken from a URL path.
func ValidateIdentity(identity string, maxLength int) error {
	switch {
	case identity == "":
		return fmt.Errorf("identity is required")
	case maxLength > 0 && len(identity) > maxLength:
		return fmt.Errorf("identity exceeds maximum length of %d bytes", maxLength)
	case !utf8.ValidString(identity):
		return fmt.Errorf("identity contains invalid UTF-8 encoding")
	case !identityPattern.MatchString(identity):
		return fmt.Errorf("identity contains invalid characters")
	}
	return nil
}

// Headers adds the security headers of a JSON API to every response.
func Headers(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if cfg.HSTS || c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// RequestID makes sure every request carries an X-Request-ID, generating one if needed.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, id)
		}
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// ValidateContentType rejects request bodies that are not JSON.
func ValidateContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasBody(c.Request) {
			c.Next()
			return
		}

		raw := c.GetHeader("Content-Type")
		mediaType, _, err := mime.ParseMediaType(raw)
		if err != nil || mediaType != "application/json" {
			abort(c, apperrors.NewUnsupportedMediaTypeError(raw))
			return
		}
		c.Next()
	}
}

// LimitBody caps request bodies at max bytes. Declared oversize bodies fail fast; the
// rest fail when the handler reads past the cap.
func LimitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > max {
			abort(c, apperrors.NewRequestTooLargeError(max))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}

// RequestTimeout bounds the request context.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Timeout", strconv.Itoa(int(timeout.Seconds())))
		c.Next()
	}
}

// IdentityParams validates the named path parameters as identities.
func IdentityParams(maxLength int, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			if err := ValidateIdentity(c.Param(name), maxLength); err != nil {
				abort(c, apperrors.NewValidationError("Invalid path parameter", map[string]string{name: err.Error()}))
				return
			}
		}
		c.Next()
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.Response(c.GetHeader(RequestIDHeader)))
}
