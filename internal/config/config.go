package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int    `env:"SITEPULSE_PORT"`
	Host string `env:"SITEPULSE_HOST"`

	// Dashboard settings file (sources, thresholds, refresh interval)
	SettingsPath string `env:"SITEPULSE_CONFIG"`

	// Trend storage; empty keeps trend points in memory only
	DBPath string `env:"SITEPULSE_DB"`

	// Expose Prometheus metrics on /metrics
	MetricsEnabled bool `env:"SITEPULSE_METRICS"`

	// Operational settings
	GracefulShutdownTimeout time.Duration `env:"SITEPULSE_SHUTDOWN_TIMEOUT"`
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.SettingsPath == "" {
		return fmt.Errorf("settings file is required")
	}

	if c.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	return nil
}

// ApplyEnv overrides fields from SITEPULSE_* environment variables.
// Unset variables leave the current values untouched.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		SettingsPath:            "configs/sitepulse.yaml",
		MetricsEnabled:          true,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
