// Package config loads service settings from defaults, an optional YAML file and
// ROWI_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
)

// EnvPrefix is prepended to every environment variable, e.g. ROWI_SERVER_PORT.
const EnvPrefix = "ROWI"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	HSTS            bool          `mapstructure:"hsts"`
	Gzip            bool          `mapstructure:"gzip"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RedisConfig leaves Addr empty to run on in-process backends only.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Size        int           `mapstructure:"size"`
	TTL         time.Duration `mapstructure:"ttl"`
	BiasSize    int           `mapstructure:"bias_size"`
	BiasTTL     time.Duration `mapstructure:"bias_ttl"`
	RankingSize int           `mapstructure:"ranking_size"`
	RankingTTL  time.Duration `mapstructure:"ranking_ttl"`
}

type RateLimitConfig struct {
	PerMinute       int           `mapstructure:"per_minute"`
	BurstMultiplier int           `mapstructure:"burst_multiplier"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SummaryConfig leaves APIKey empty to disable generated summaries.
type SummaryConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ScoringConfig struct {
	// CalibrationDir holds <context>.yaml overrides; empty means <data_dir>.
	CalibrationDir string        `mapstructure:"calibration_dir"`
	SourceTimeout  time.Duration `mapstructure:"source_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.hsts", false)
	v.SetDefault("server.gzip", true)

	v.SetDefault("storage.data_dir", "./data")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.bias_size", 4096)
	v.SetDefault("cache.bias_ttl", 30*time.Minute)
	v.SetDefault("cache.ranking_size", 1024)
	v.SetDefault("cache.ranking_ttl", 5*time.Minute)

	v.SetDefault("rate_limit.per_minute", 120)
	v.SetDefault("rate_limit.burst_multiplier", 1)
	v.SetDefault("rate_limit.cleanup_interval", time.Hour)

	v.SetDefault("summary.api_key", "")
	v.SetDefault("summary.endpoint", "https://api.anthropic.com/v1/messages")
	v.SetDefault("summary.model", "")
	v.SetDefault("summary.timeout", 15*time.Second)

	v.SetDefault("scoring.calibration_dir", "")
	v.SetDefault("scoring.source_timeout", 2*time.Second)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. path may be empty; a missing file is only an error
// when path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
		}
	} else {
		v.SetConfigName("rowi-affinity")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rowi-affinity")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, apperrors.NewConfigurationError("failed to read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigurationError("failed to decode config", err)
	}
	cfg.Server.AllowedOrigins = splitOrigins(cfg.Server.AllowedOrigins)
	if cfg.Scoring.CalibrationDir == "" {
		cfg.Scoring.CalibrationDir = cfg.Storage.DataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitOrigins accepts both a YAML list and a comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(c.Server.Port) == "" {
		fields["server.port"] = "must not be empty"
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		fields["storage.data_dir"] = "must not be empty"
	}
	if c.Cache.Size <= 0 {
		fields["cache.size"] = "must be positive"
	}
	if c.Cache.TTL <= 0 {
		fields["cache.ttl"] = "must be positive"
	}
	if c.RateLimit.PerMinute <= 0 {
		fields["rate_limit.per_minute"] = "must be positive"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid configuration", fields)
	}
	return nil
}
