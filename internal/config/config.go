// Package config loads the engine's environment configuration. Every field
// is read from an env var; there is no YAML file in this deployment, only
// REDIS_URL, DATABASE_URL and JWT_SECRET plus pool sizes, inbox/outbox
// capacity and the metrics listen address.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level engine configuration.
type Config struct {
	RedisURL    string `mapstructure:"redis_url"`
	DatabaseURL string `mapstructure:"database_url"`
	JWTSecret   string `mapstructure:"jwt_secret"`

	RequestPoolSize int `mapstructure:"request_pool_size"`
	ReadPoolSize    int `mapstructure:"read_pool_size"`
	InboxSize       int `mapstructure:"inbox_size"`
	OutboxSize      int `mapstructure:"outbox_size"`
	MetricsAddr     string `mapstructure:"metrics_addr"`
}

// Load reads configuration from the process environment. REDIS_URL,
// DATABASE_URL and JWT_SECRET have no config-file counterpart — this engine
// ships as one binary reading env vars only, unlike the bot this package is
// grounded on, which layers env vars over a YAML file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("redis_url", "redis://127.0.0.1:6379")
	v.SetDefault("request_pool_size", 4)
	v.SetDefault("read_pool_size", 4)
	v.SetDefault("inbox_size", 1024)
	v.SetDefault("outbox_size", 4096)
	v.SetDefault("metrics_addr", ":9090")

	for _, key := range []string{"redis_url", "database_url", "jwt_secret", "request_pool_size", "read_pool_size", "inbox_size", "outbox_size", "metrics_addr"} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields Load cannot default sensibly.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errRequired("database_url", "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errRequired("jwt_secret", "JWT_SECRET")
	}
	return nil
}

type missingFieldError struct {
	field, env string
}

func (e *missingFieldError) Error() string {
	return e.field + " is required (set " + e.env + ")"
}

func errRequired(field, env string) error {
	return &missingFieldError{field: field, env: env}
}
