package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog with the domain log lines the service emits.
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a JSON logger on stdout.
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: ParseLevel(level) == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})
	return &Logger{Logger: slog.New(handler)}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With("component", name)}
}

// RequestLogger logs one HTTP request.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	}
	l.Log(context.Background(), level, "HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ScoreLogger logs a computed affinity result.
func (l *Logger) ScoreLogger(subject, counterpart, context string, composite float64, level string, duration time.Duration, cached bool) {
	l.Info("Affinity Computed",
		"subject", subject,
		"counterpart", counterpart,
		"context", context,
		"composite", composite,
		"level", level,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cached,
	)
}

// UnavailableLogger logs a pair that could not be scored.
func (l *Logger) UnavailableLogger(subject, counterpart, context, reason string) {
	l.Info("Affinity Not Available",
		"subject", subject,
		"counterpart", counterpart,
		"context", context,
		"reason", reason,
	)
}

// SubFetchLogger logs a failed sub-computation that was replaced by a zero score.
func (l *Logger) SubFetchLogger(source string, err error) {
	l.Warn("Sub-score Unavailable",
		"source", source,
		"error", err,
	)
}

// CacheLogger logs cache operations at debug level.
func (l *Logger) CacheLogger(backend, operation, key string, hit bool) {
	l.Debug("Cache Operation",
		"backend", backend,
		"operation", operation,
		"key", key,
		"hit", hit,
	)
}

// ExternalLogger logs calls to remote collaborators.
func (l *Logger) ExternalLogger(name, endpoint string, statusCode int, duration time.Duration, err error) {
	attrs := []any{
		"api_name", name,
		"endpoint", endpoint,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		l.Warn("External API Call", append(attrs, "error", err)...)
		return
	}
	l.Info("External API Call", attrs...)
}

// SystemLogger logs lifecycle events.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
