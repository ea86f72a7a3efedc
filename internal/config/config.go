// Package config loads service configuration from environment variables
// (LICENSEGATE_ prefix) with an optional YAML file underneath. Environment
// values take precedence over the file; defaults cover local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig selects and configures the license record store.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver" envconfig:"DRIVER" default:"sqlite"`
	DSN    string `yaml:"dsn" envconfig:"DSN" default:"licensegate.db"`
}

// SecurityConfig contains the protocol security knobs.
type SecurityConfig struct {
	// SigningSecret is the shared HMAC secret for activation request
	// signatures. Injected here so it can be rotated per environment and
	// swapped in tests; nothing reads it from ambient globals.
	SigningSecret string `yaml:"signing_secret" envconfig:"SIGNING_SECRET"`
	// RequireSignature rejects unsigned activation requests. The historical
	// behavior is to skip verification when timestamp/signature are absent;
	// that weakening stays the default, opting into strict mode is explicit.
	RequireSignature bool `yaml:"require_signature" envconfig:"REQUIRE_SIGNATURE" default:"false"`
	// AdminToken guards the admin license-management endpoints. Empty
	// disables them entirely.
	AdminToken string `yaml:"admin_token" envconfig:"ADMIN_TOKEN"`

	// Anti-enumeration delay window applied to every activation response.
	DelayMin time.Duration `yaml:"delay_min" envconfig:"DELAY_MIN" default:"100ms"`
	DelayMax time.Duration `yaml:"delay_max" envconfig:"DELAY_MAX" default:"300ms"`

	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// RateLimitConfig contains rate limiting configuration. The global bucket
// covers the whole surface; the per-IP bucket applies to the activation
// endpoint only.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`

	PerIPEnabled bool    `yaml:"per_ip_enabled" envconfig:"PER_IP_ENABLED" default:"true"`
	PerIPRPS     float64 `yaml:"per_ip_rps" envconfig:"PER_IP_RPS" default:"5"`
	PerIPBurst   int     `yaml:"per_ip_burst" envconfig:"PER_IP_BURST" default:"10"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
}

// Load builds the configuration from an optional config.yaml plus the
// environment, then validates it.
func Load() (*Config, error) {
	var cfg Config

	if data, err := os.ReadFile(configFilePath()); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("LICENSEGATE", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func configFilePath() string {
	if p := os.Getenv("LICENSEGATE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		return fmt.Errorf("sqlite store requires a dsn")
	}
	if c.Security.RequireSignature && c.Security.SigningSecret == "" {
		return fmt.Errorf("require_signature is set but signing_secret is empty")
	}
	if c.Security.DelayMin < 0 || c.Security.DelayMax < c.Security.DelayMin {
		return fmt.Errorf("invalid delay window: min=%s max=%s", c.Security.DelayMin, c.Security.DelayMax)
	}
	return nil
}

// Default returns the default configuration, used by tests that need a
// baseline without touching the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "licensegate.db",
		},
		Security: SecurityConfig{
			RequireSignature: false,
			DelayMin:         100 * time.Millisecond,
			DelayMax:         300 * time.Millisecond,
			RateLimit: RateLimitConfig{
				Enabled:      true,
				RPS:          50,
				Burst:        25,
				PerIPEnabled: true,
				PerIPRPS:     5,
				PerIPBurst:   10,
			},
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
