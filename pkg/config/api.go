package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultAPIListen is the default HTTP listen address.
	DefaultAPIListen = ":9090"

	// DefaultRequestsPerMinute is the default per-IP request budget.
	DefaultRequestsPerMinute = 120
)

// APIConfig contains the HTTP API server configuration.
type APIConfig struct {
	Server APIServerConfig `yaml:"server" mapstructure:"server"`
	// RecordRuns stores every served /metrics analysis in the run store.
	RecordRuns bool `yaml:"record_runs" mapstructure:"record_runs"`
	// ReloadInterval re-reads the datasets periodically, e.g. "10m".
	// Empty disables periodic reloads.
	ReloadInterval string `yaml:"reload_interval,omitempty" mapstructure:"reload_interval"`
}

// ParsedReloadInterval returns the reload interval, or zero when disabled.
func (a *APIConfig) ParsedReloadInterval() (time.Duration, error) {
	if a.ReloadInterval == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(a.ReloadInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing reload_interval: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("reload_interval must be positive, got %s", d)
	}

	return d, nil
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

func (a *APIConfig) validate() error {
	if a.Server.RateLimit.Enabled && a.Server.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("server.rate_limit.requests_per_minute must be positive")
	}

	if _, err := a.ParsedReloadInterval(); err != nil {
		return err
	}

	return nil
}
