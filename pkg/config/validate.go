package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/rhuss/zaguan/pkg/debug"
	"github.com/rhuss/zaguan/pkg/failure"
)

var (
	logLevels       = []string{"TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
	debugCategories = []string{debug.Transport, debug.Retry, debug.Streaming, debug.Observability, debug.Config, debug.All}
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Gateway.BaseURL == "" {
		errs = append(errs, fmt.Errorf("gateway.base_url is required"))
	} else if u, err := url.Parse(c.Gateway.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("gateway.base_url must be an absolute http(s) URL, got %q", c.Gateway.BaseURL))
	}

	if c.Gateway.APIKey == "" {
		errs = append(errs, fmt.Errorf("gateway.api_key or gateway.api_key_file is required"))
	}

	if c.Gateway.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout must be > 0, got %v", c.Gateway.Timeout))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.InitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry.initial_delay must be > 0, got %v", c.Retry.InitialDelay))
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, fmt.Errorf("retry.max_delay (%v) must be >= retry.initial_delay (%v)", c.Retry.MaxDelay, c.Retry.InitialDelay))
	}
	if c.Retry.Base < 1 {
		errs = append(errs, fmt.Errorf("retry.base must be >= 1, got %g", c.Retry.Base))
	}
	for _, name := range c.Retry.RetryOn {
		if _, err := failure.ParseKind(name); err != nil {
			errs = append(errs, fmt.Errorf("retry.retry_on: %w", err))
		}
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be >= 0, got %g", c.RateLimit.RequestsPerSecond))
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must be >= 1 when throttling is enabled, got %d", c.RateLimit.Burst))
	}

	if !slices.Contains(logLevels, strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("logging.level must be one of TRACE, DEBUG, INFO, WARN, ERROR, got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}
	for _, cat := range c.Logging.Debug {
		if !slices.Contains(debugCategories, strings.ToLower(cat)) {
			errs = append(errs, fmt.Errorf("logging.debug: unknown category %q", cat))
		}
	}

	if c.Observability.Metrics.Enabled {
		if c.Observability.Metrics.Addr == "" {
			errs = append(errs, fmt.Errorf("observability.metrics.addr is required when metrics are enabled"))
		}
		if !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
		}
	}

	return errors.Join(errs...)
}
