package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries the runtime settings for both binaries. Every field maps to
// an environment variable of the same name in upper case, so DATABASE_URL,
// OUTBOX_TARGET_URL and friends behave the way deployment scripts expect.
type Config struct {
	DatabaseURL  string `mapstructure:"database_url"`
	HTTPAddr     string `mapstructure:"http_addr"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	AdminKeyHash string `mapstructure:"admin_key_hash"`
	LogLevel     string `mapstructure:"log_level"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	OutboxTargetURL     string        `mapstructure:"outbox_target_url"`
	OutboxSigningSecret string        `mapstructure:"outbox_signing_secret"`
	OutboxBatchSize     int           `mapstructure:"outbox_batch_size"`
	OutboxPollInterval  time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxMaxRetries    int           `mapstructure:"outbox_max_retries"`
	OutboxHTTPTimeout   time.Duration `mapstructure:"outbox_http_timeout"`
	OutboxRetentionDays int           `mapstructure:"outbox_retention_days"`
}

// Load reads configuration from the environment, applying defaults for
// everything except the database URL, which has no sensible default.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("database_url", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("admin_key_hash", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9091")
	v.SetDefault("outbox_target_url", "")
	v.SetDefault("outbox_signing_secret", "")
	v.SetDefault("outbox_batch_size", 20)
	v.SetDefault("outbox_poll_interval", 5*time.Second)
	v.SetDefault("outbox_max_retries", 5)
	v.SetDefault("outbox_http_timeout", 15*time.Second)
	v.SetDefault("outbox_retention_days", 14)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.OutboxBatchSize <= 0 {
		return Config{}, fmt.Errorf("config: OUTBOX_BATCH_SIZE must be positive")
	}
	if cfg.OutboxMaxRetries < 0 {
		return Config{}, fmt.Errorf("config: OUTBOX_MAX_RETRIES must not be negative")
	}

	return cfg, nil
}
