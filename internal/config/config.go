package config

import (
	"fmt"
	"time"
)

// Config is the complete application configuration. Commands load it
// once at startup and hand immutable snapshots to the engine; a cycle
// never observes a mid-flight config change.
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	Rate         RateConfig         `mapstructure:"rate"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Roster       RosterConfig       `mapstructure:"roster"`
	Watch        WatchConfig        `mapstructure:"watch"`
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Health       HealthConfig       `mapstructure:"health"`
}

// APIConfig locates the remote API.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Key     string `mapstructure:"key"`
}

// FetchConfig bounds the worker pool.
type FetchConfig struct {
	// Concurrency is the number of workers per refresh cycle.
	Concurrency int `mapstructure:"concurrency"`
	// Timeout bounds each fetch attempt.
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateConfig shapes outbound request pacing.
type RateConfig struct {
	CapPerMinute int           `mapstructure:"cap_per_minute"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	// MinPenalty is the smallest cooldown applied after an upstream
	// rate-limit response.
	MinPenalty time.Duration `mapstructure:"min_penalty"`
}

// RetryConfig shapes the per-fetch retry loop.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffCeiling  time.Duration `mapstructure:"backoff_ceiling"`
	HonorRetryAfter bool          `mapstructure:"honor_retry_after"`
}

// CacheConfig controls the persistent entity cache.
type CacheConfig struct {
	// TTL is evaluated at lookup time. Zero disables cache hits
	// without disabling writes.
	TTL     time.Duration `mapstructure:"ttl"`
	Preload bool          `mapstructure:"preload"`
}

// ConnectivityConfig controls the online/offline probe.
type ConnectivityConfig struct {
	ProbeURL  string        `mapstructure:"probe_url"`
	Interval  time.Duration `mapstructure:"interval"`
	Threshold int           `mapstructure:"threshold"`
}

// RosterConfig locates the user-curated roster files.
type RosterConfig struct {
	TargetsFile string `mapstructure:"targets_file"`
	IgnoreFile  string `mapstructure:"ignore_file"`
}

// WatchConfig controls daemon mode.
type WatchConfig struct {
	// AutoRefresh is the interval between automatic cycles. Zero
	// disables the timer.
	AutoRefresh time.Duration `mapstructure:"auto_refresh"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
// Profiles: SIMPLE (console, CLI tools), STRUCTURED (structured sinks,
// correlation IDs), ENTERPRISE (multiple sinks, policy enforcement).
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Rate.CapPerMinute < 1 {
		return fmt.Errorf("rate.cap_per_minute must be at least 1, got %d", c.Rate.CapPerMinute)
	}
	if c.Rate.MinInterval < 0 {
		return fmt.Errorf("rate.min_interval must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffBase <= 0 {
		return fmt.Errorf("retry.backoff_base must be positive")
	}
	if c.Retry.BackoffCeiling < c.Retry.BackoffBase {
		return fmt.Errorf("retry.backoff_ceiling must not be below retry.backoff_base")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Connectivity.Threshold < 1 {
		return fmt.Errorf("connectivity.threshold must be at least 1, got %d", c.Connectivity.Threshold)
	}
	return nil
}
