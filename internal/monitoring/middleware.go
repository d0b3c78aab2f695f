package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// MonitoringMiddleware records request metrics, opens a request span, and logs each request.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := StartSpan(c.Request.Context(), c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		var spanErr error
		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		}
		EndSpan(span, spanErr)

		metrics.ObserveRequest(c.Request.Method, route, status, duration)
		if logger != nil {
			logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, duration)
		}
	}
}
