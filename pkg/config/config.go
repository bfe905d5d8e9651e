// Package config provides layered configuration for the zaguan client and CLI.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file (variables already set in the environment win)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (ZAGUAN_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import (
	"fmt"
	"time"

	"github.com/rhuss/zaguan/pkg/client"
	"github.com/rhuss/zaguan/pkg/failure"
	"github.com/rhuss/zaguan/pkg/retry"
)

// Config holds all configuration for a zaguan client.
type Config struct {
	Gateway       GatewayConfig       `yaml:"gateway"`
	Retry         RetryConfig         `yaml:"retry"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GatewayConfig holds the connection settings for the CoreX gateway.
type GatewayConfig struct {
	BaseURL      string        `yaml:"base_url"`      // required
	APIKey       string        `yaml:"api_key"`       // required
	APIKeyFile   string        `yaml:"api_key_file"`  // _file variant for api_key
	Timeout      time.Duration `yaml:"timeout"`       // default: 30s
	DefaultModel string        `yaml:"default_model"` // default: openai/gpt-4o-mini
	UserAgent    string        `yaml:"user_agent"`    // optional
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`   // default: 3
	InitialDelay time.Duration `yaml:"initial_delay"` // default: 1s
	MaxDelay     time.Duration `yaml:"max_delay"`     // default: 60s
	Base         float64       `yaml:"base"`          // default: 2.0
	Jitter       bool          `yaml:"jitter"`        // default: true
	RetryOn      []string      `yaml:"retry_on"`      // failure kind names
}

// RateLimitConfig holds client-side throttling settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables throttling
	Burst             int     `yaml:"burst"`               // default: 1
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string   `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Format string   `yaml:"format"` // "text" or "json", default: "text"
	Debug  []string `yaml:"debug"`  // debug categories
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // listen address for the CLI, default: ":9090"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	rc := retry.DefaultConfig()
	retryOn := make([]string, 0, len(rc.RetryOn))
	for _, k := range rc.RetryOn {
		retryOn = append(retryOn, k.String())
	}

	return Config{
		Gateway: GatewayConfig{
			Timeout:      client.DefaultTimeout,
			DefaultModel: client.DefaultModel,
		},
		Retry: RetryConfig{
			MaxRetries:   rc.MaxRetries,
			InitialDelay: rc.InitialDelay,
			MaxDelay:     rc.MaxDelay,
			Base:         rc.Base,
			Jitter:       rc.Jitter,
			RetryOn:      retryOn,
		},
		RateLimit: RateLimitConfig{
			Burst: 1,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Addr: ":9090",
				Path: "/metrics",
			},
		},
	}
}

// RetryPolicy converts the retry section to a retry.Config.
func (c *Config) RetryPolicy() (retry.Config, error) {
	kinds := make([]failure.Kind, 0, len(c.Retry.RetryOn))
	for _, name := range c.Retry.RetryOn {
		k, err := failure.ParseKind(name)
		if err != nil {
			return retry.Config{}, fmt.Errorf("retry.retry_on: %w", err)
		}
		kinds = append(kinds, k)
	}
	return retry.Config{
		MaxRetries:   c.Retry.MaxRetries,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Base:         c.Retry.Base,
		Jitter:       c.Retry.Jitter,
		RetryOn:      kinds,
	}, nil
}

// Client converts the configuration to a client.Config.
func (c *Config) Client() (client.Config, error) {
	rc, err := c.RetryPolicy()
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		BaseURL:      c.Gateway.BaseURL,
		APIKey:       c.Gateway.APIKey,
		Timeout:      c.Gateway.Timeout,
		Retry:        &rc,
		RateLimit:    c.RateLimit.RequestsPerSecond,
		RateBurst:    c.RateLimit.Burst,
		DefaultModel: c.Gateway.DefaultModel,
		UserAgent:    c.Gateway.UserAgent,
	}, nil
}
