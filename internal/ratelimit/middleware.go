package ratelimit

import (
	"log/slog"
	"strconv"

	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware rejects clients over their per-minute budget. Limiter failures
// never block a request.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			rl.metrics.IncRateLimit("blocked")
			retry := int(result.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))

			appErr := apperrors.NewRateLimitError(result.RetryAfter)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response(c.GetHeader("X-Request-ID")))
			return
		}

		c.Next()
	}
}
