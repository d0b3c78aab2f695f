package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rowi-affinity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "./data", cfg.Scoring.CalibrationDir)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
	assert.Empty(t, cfg.Summary.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Scoring.SourceTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 20*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.Server.Gzip)
	assert.False(t, cfg.Server.HSTS)
	assert.Equal(t, 5*time.Minute, cfg.Cache.RankingTTL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  allowed_origins: ["https://app.rowi.io", "https://admin.rowi.io"]
storage:
  data_dir: /var/lib/rowi
cache:
  ttl: 1h
scoring:
  calibration_dir: /etc/rowi/calibration
log:
  level: debug
`)
	t.Setenv("ROWI_SERVER_PORT", "9100")
	t.Setenv("ROWI_REDIS_ADDR", "localhost:6379")
	t.Setenv("ROWI_SUMMARY_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, []string{"https://app.rowi.io", "https://admin.rowi.io"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/var/lib/rowi", cfg.Storage.DataDir)
	assert.Equal(t, "/etc/rowi/calibration", cfg.Scoring.CalibrationDir)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "sk-test", cfg.Summary.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, apperrors.CategoryConfiguration, apperrors.ToAppError(err).Category)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "cache:\n  size: 0\nrate_limit:\n  per_minute: -1\n")
		_, err := Load(path)
		require.Error(t, err)

		appErr := apperrors.ToAppError(err)
		assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
		assert.Contains(t, appErr.Fields, "cache.size")
		assert.Contains(t, appErr.Fields, "rate_limit.per_minute")
	})
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitOrigins([]string{"a, b", " ", "c"}))
	assert.Nil(t, splitOrigins(nil))
}
