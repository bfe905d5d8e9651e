package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/zaguan/pkg/debug"
)

// DefaultEnvFile is read when Load is given no env files.
const DefaultEnvFile = ".env"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env files (envFiles, or ./.env if it exists)
//  3. YAML config file (explicit path, ZAGUAN_CONFIG env, ./zaguan.yaml, $XDG_CONFIG_HOME/zaguan/config.yaml)
//  4. ZAGUAN_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := Defaults()

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log(debug.Config, "config file loaded", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadEnvFiles exports the variables of the given .env files into the
// process environment. Variables that are already set are kept. With no
// files given, ./.env is read if present.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		files = []string{DefaultEnvFile}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	debug.Log(debug.Config, "env files loaded", "files", files)
	return nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ZAGUAN_CONFIG environment variable
// 3. ./zaguan.yaml in the current directory
// 4. zaguan/config.yaml in the user config directory
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("ZAGUAN_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{"zaguan.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "zaguan", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ZAGUAN_* environment variables to config fields.
// Malformed numeric or duration values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	list := func(name string, dst *[]string) {
		if v := os.Getenv(name); v != "" {
			*dst = splitList(v)
		}
	}

	str("ZAGUAN_BASE_URL", &cfg.Gateway.BaseURL)
	str("ZAGUAN_API_KEY", &cfg.Gateway.APIKey)
	str("ZAGUAN_API_KEY_FILE", &cfg.Gateway.APIKeyFile)
	duration("ZAGUAN_TIMEOUT", &cfg.Gateway.Timeout)
	str("ZAGUAN_DEFAULT_MODEL", &cfg.Gateway.DefaultModel)
	str("ZAGUAN_USER_AGENT", &cfg.Gateway.UserAgent)

	integer("ZAGUAN_MAX_RETRIES", &cfg.Retry.MaxRetries)
	duration("ZAGUAN_RETRY_INITIAL_DELAY", &cfg.Retry.InitialDelay)
	duration("ZAGUAN_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	list("ZAGUAN_RETRY_ON", &cfg.Retry.RetryOn)
	if v := os.Getenv("ZAGUAN_RETRY_JITTER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ZAGUAN_RETRY_JITTER: %w", err))
		} else {
			cfg.Retry.Jitter = b
		}
	}

	float("ZAGUAN_RATE_LIMIT", &cfg.RateLimit.RequestsPerSecond)
	integer("ZAGUAN_RATE_BURST", &cfg.RateLimit.Burst)

	str("ZAGUAN_LOG_LEVEL", &cfg.Logging.Level)
	str("ZAGUAN_LOG_FORMAT", &cfg.Logging.Format)
	list("ZAGUAN_DEBUG", &cfg.Logging.Debug)

	if v := os.Getenv("ZAGUAN_METRICS_ADDR"); v != "" {
		cfg.Observability.Metrics.Enabled = true
		cfg.Observability.Metrics.Addr = v
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields when those are empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Gateway.APIKeyFile != "" && cfg.Gateway.APIKey == "" {
		val, err := readSecretFile(cfg.Gateway.APIKeyFile)
		if err != nil {
			return fmt.Errorf("gateway.api_key_file: %w", err)
		}
		cfg.Gateway.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("secret file %s does not exist", path)
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
