package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environment names the deployment tier. Anything unrecognized is production.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvStaging     Environment = "staging"
	EnvDevelopment Environment = "development"
)

// UnmarshalText implements encoding.TextUnmarshaler for Environment.
// Unknown values fail closed to production rather than erroring.
func (e *Environment) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "development", "dev", "local":
		*e = EnvDevelopment
	case "staging", "stage":
		*e = EnvStaging
	default:
		*e = EnvProduction
	}
	return nil
}

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication and identity platform configuration
//   - database.go: Postgres and Redis configuration
//   - http.go: HTTP server configuration
//   - sessions.go: Session and audit configuration
//   - observability.go: Logging and metrics configuration
type AppConfig struct {
	// Env selects production behavior. Defaults to production when unset.
	Env Environment `env:"APP_ENV" envDefault:"production"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Sessions SessionConfig
	Audit    AuditConfig

	Observability ObservabilityConfig
}

// IsProduction reports whether production guards apply.
func (c *AppConfig) IsProduction() bool { return c.Env == EnvProduction || c.Env == "" }

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	if c.Env == "" {
		c.Env = EnvProduction
	}
	c.Auth.Sanitize(c.IsProduction())
	c.HTTP.Sanitize()
	c.Sessions.Sanitize()
	c.Audit.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot start a server.
func (c *AppConfig) Validate() error {
	return errors.Join(c.Auth.Validate(), c.Postgres.Validate())
}

// Load reads an optional .env file (outside production), parses the environment
// and sanitizes the result.
func Load() (AppConfig, error) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), string(EnvProduction)) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("load .env: %w", err)
		}
	}
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
