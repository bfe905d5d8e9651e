package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/zaguan/pkg/client"
	"github.com/rhuss/zaguan/pkg/failure"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("default gateway.timeout = %v, want 30s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.DefaultModel != client.DefaultModel {
		t.Errorf("default gateway.default_model = %q, want %q", cfg.Gateway.DefaultModel, client.DefaultModel)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("default retry.max_retries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialDelay != time.Second || cfg.Retry.MaxDelay != 60*time.Second {
		t.Errorf("default retry delays = %v/%v, want 1s/60s", cfg.Retry.InitialDelay, cfg.Retry.MaxDelay)
	}
	if cfg.Retry.Base != 2.0 || !cfg.Retry.Jitter {
		t.Errorf("default retry base/jitter = %g/%v, want 2/true", cfg.Retry.Base, cfg.Retry.Jitter)
	}
	want := []string{"rate_limited", "server_error", "network_error", "timeout"}
	if strings.Join(cfg.Retry.RetryOn, ",") != strings.Join(want, ",") {
		t.Errorf("default retry.retry_on = %v, want %v", cfg.Retry.RetryOn, want)
	}
	if cfg.RateLimit.RequestsPerSecond != 0 || cfg.RateLimit.Burst != 1 {
		t.Errorf("default rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics enabled by default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	isolate(t)

	yamlContent := `
gateway:
  base_url: https://api.zaguanai.com
  api_key: sk-test-key
  timeout: 45s
  default_model: anthropic/claude-3-5-sonnet
  user_agent: my-app/1.0
retry:
  max_retries: 5
  initial_delay: 500ms
  max_delay: 10s
  base: 3
  jitter: false
  retry_on: [server_error, timeout]
rate_limit:
  requests_per_second: 2.5
  burst: 4
logging:
  level: debug
  format: json
  debug: [transport, retry]
observability:
  metrics:
    enabled: true
    addr: 127.0.0.1:9100
`

	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Gateway
	if cfg.Gateway.BaseURL != "https://api.zaguanai.com" {
		t.Errorf("gateway.base_url = %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.APIKey != "sk-test-key" {
		t.Errorf("gateway.api_key = %q", cfg.Gateway.APIKey)
	}
	if cfg.Gateway.Timeout != 45*time.Second {
		t.Errorf("gateway.timeout = %v, want 45s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.DefaultModel != "anthropic/claude-3-5-sonnet" {
		t.Errorf("gateway.default_model = %q", cfg.Gateway.DefaultModel)
	}

	// Retry
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.InitialDelay != 500*time.Millisecond || cfg.Retry.MaxDelay != 10*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Retry.Base != 3 || cfg.Retry.Jitter {
		t.Errorf("retry base/jitter = %g/%v", cfg.Retry.Base, cfg.Retry.Jitter)
	}
	if len(cfg.Retry.RetryOn) != 2 {
		t.Errorf("retry.retry_on = %v, want the YAML list only", cfg.Retry.RetryOn)
	}

	// Rate limit, logging, metrics
	if cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 4 {
		t.Errorf("rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || len(cfg.Logging.Debug) != 2 {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
	if cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("metrics.path = %q, want default kept", cfg.Observability.Metrics.Path)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)

	tmpFile := writeTemp(t, "config-*.yaml", `
gateway:
  base_url: https://from-yaml.example
  api_key: sk-yaml
retry:
  max_retries: 1
`)

	t.Setenv("ZAGUAN_BASE_URL", "https://from-env.example")
	t.Setenv("ZAGUAN_TIMEOUT", "5s")
	t.Setenv("ZAGUAN_MAX_RETRIES", "7")
	t.Setenv("ZAGUAN_RETRY_ON", "rate_limited, network_error")
	t.Setenv("ZAGUAN_RETRY_JITTER", "false")
	t.Setenv("ZAGUAN_RATE_LIMIT", "10")
	t.Setenv("ZAGUAN_RATE_BURST", "20")
	t.Setenv("ZAGUAN_LOG_LEVEL", "TRACE")
	t.Setenv("ZAGUAN_DEBUG", "streaming,config")
	t.Setenv("ZAGUAN_METRICS_ADDR", ":9300")

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Gateway.BaseURL != "https://from-env.example" {
		t.Errorf("base_url = %q, env should win over YAML", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.APIKey != "sk-yaml" {
		t.Errorf("api_key = %q, YAML value should survive", cfg.Gateway.APIKey)
	}
	if cfg.Gateway.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Gateway.Timeout)
	}
	if cfg.Retry.MaxRetries != 7 || cfg.Retry.Jitter {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if strings.Join(cfg.Retry.RetryOn, ",") != "rate_limited,network_error" {
		t.Errorf("retry_on = %v", cfg.Retry.RetryOn)
	}
	if cfg.RateLimit.RequestsPerSecond != 10 || cfg.RateLimit.Burst != 20 {
		t.Errorf("rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Logging.Level != "TRACE" || strings.Join(cfg.Logging.Debug, ",") != "streaming,config" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Addr != ":9300" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
}

func TestEnvOverride_Malformed(t *testing.T) {
	isolate(t)
	t.Setenv("ZAGUAN_BASE_URL", "https://api.example")
	t.Setenv("ZAGUAN_API_KEY", "sk")
	t.Setenv("ZAGUAN_TIMEOUT", "soon")
	t.Setenv("ZAGUAN_MAX_RETRIES", "many")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for malformed env values")
	}
	for _, want := range []string{"ZAGUAN_TIMEOUT", "ZAGUAN_MAX_RETRIES"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestEnvFile(t *testing.T) {
	isolate(t)
	unsetenv(t, "ZAGUAN_BASE_URL")
	unsetenv(t, "ZAGUAN_API_KEY")

	envFile := writeTemp(t, "test-*.env", "ZAGUAN_BASE_URL=https://dotenv.example\nZAGUAN_API_KEY=sk-dotenv\n")

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://dotenv.example" || cfg.Gateway.APIKey != "sk-dotenv" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
}

func TestEnvFile_ProcessEnvWins(t *testing.T) {
	isolate(t)
	unsetenv(t, "ZAGUAN_API_KEY")
	t.Setenv("ZAGUAN_BASE_URL", "https://process.example")

	envFile := writeTemp(t, "test-*.env", "ZAGUAN_BASE_URL=https://dotenv.example\nZAGUAN_API_KEY=sk-dotenv\n")

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://process.example" {
		t.Errorf("base_url = %q, process env should win", cfg.Gateway.BaseURL)
	}
}

func TestEnvFile_DefaultInWorkingDir(t *testing.T) {
	dir := isolate(t)
	unsetenv(t, "ZAGUAN_BASE_URL")
	unsetenv(t, "ZAGUAN_API_KEY")

	content := "ZAGUAN_BASE_URL=https://cwd.example\nZAGUAN_API_KEY=sk-cwd\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://cwd.example" {
		t.Errorf("base_url = %q", cfg.Gateway.BaseURL)
	}
}

func TestEnvFile_MissingExplicit(t *testing.T) {
	isolate(t)
	if _, err := Load("", filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing explicit env file")
	}
}

func TestFileReference(t *testing.T) {
	isolate(t)

	secretFile := writeTemp(t, "secret-*.txt", "  sk-from-file-123  \n")
	tmpFile := writeTemp(t, "config-*.yaml", `
gateway:
  base_url: https://api.example
  api_key_file: `+secretFile+`
`)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gateway.APIKey != "sk-from-file-123" {
		t.Errorf("api_key = %q, want trimmed file content", cfg.Gateway.APIKey)
	}
}

func TestFileReferenceDoesNotOverrideExplicitValue(t *testing.T) {
	isolate(t)

	secretFile := writeTemp(t, "secret-*.txt", "sk-from-file")
	tmpFile := writeTemp(t, "config-*.yaml", `
gateway:
  base_url: https://api.example
  api_key: sk-explicit
  api_key_file: `+secretFile+`
`)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Gateway.APIKey != "sk-explicit" {
		t.Errorf("api_key = %q, explicit value should win", cfg.Gateway.APIKey)
	}
}

func TestFileReferenceMissing(t *testing.T) {
	isolate(t)

	tmpFile := writeTemp(t, "config-*.yaml", `
gateway:
  base_url: https://api.example
  api_key_file: /nonexistent/secret
`)

	_, err := Load(tmpFile)
	if err == nil || !strings.Contains(err.Error(), "gateway.api_key_file") {
		t.Errorf("err = %v, want gateway.api_key_file error", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	dir := isolate(t)

	// Explicit path.
	tmpFile := writeTemp(t, "config-*.yaml", `
gateway:
  base_url: https://explicit.example
  api_key: sk
`)
	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load(explicit) error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://explicit.example" {
		t.Errorf("explicit path: base_url = %q", cfg.Gateway.BaseURL)
	}

	// User config directory.
	userFile := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "zaguan", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(userFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userFile, []byte("gateway:\n  base_url: https://user.example\n  api_key: sk\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(user dir) error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://user.example" {
		t.Errorf("user dir: base_url = %q", cfg.Gateway.BaseURL)
	}

	// ./zaguan.yaml wins over the user directory.
	if err := os.WriteFile(filepath.Join(dir, "zaguan.yaml"), []byte("gateway:\n  base_url: https://cwd.example\n  api_key: sk\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(cwd) error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://cwd.example" {
		t.Errorf("cwd: base_url = %q", cfg.Gateway.BaseURL)
	}

	// ZAGUAN_CONFIG wins over discovery.
	envFile := writeTemp(t, "envconfig-*.yaml", "gateway:\n  base_url: https://env-config.example\n  api_key: sk\n")
	t.Setenv("ZAGUAN_CONFIG", envFile)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(ZAGUAN_CONFIG) error: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://env-config.example" {
		t.Errorf("ZAGUAN_CONFIG: base_url = %q", cfg.Gateway.BaseURL)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	isolate(t)
	tmpFile := writeTemp(t, "config-*.yaml", "gateway: [not, a, map")
	if _, err := Load(tmpFile); err == nil || !strings.Contains(err.Error(), "loading config file") {
		t.Errorf("err = %v, want loading config file error", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base_url",
			modify:  func(c *Config) { c.Gateway.BaseURL = "" },
			wantErr: "gateway.base_url is required",
		},
		{
			name:    "relative base_url",
			modify:  func(c *Config) { c.Gateway.BaseURL = "api.example" },
			wantErr: "gateway.base_url must be an absolute",
		},
		{
			name:    "missing api key",
			modify:  func(c *Config) { c.Gateway.APIKey = "" },
			wantErr: "gateway.api_key or gateway.api_key_file is required",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Gateway.Timeout = 0 },
			wantErr: "gateway.timeout must be > 0",
		},
		{
			name:    "negative max retries",
			modify:  func(c *Config) { c.Retry.MaxRetries = -1 },
			wantErr: "retry.max_retries must be >= 0",
		},
		{
			name:    "max delay below initial",
			modify:  func(c *Config) { c.Retry.MaxDelay = 100 * time.Millisecond },
			wantErr: "retry.max_delay",
		},
		{
			name:    "base below one",
			modify:  func(c *Config) { c.Retry.Base = 0.5 },
			wantErr: "retry.base must be >= 1",
		},
		{
			name:    "unknown retry kind",
			modify:  func(c *Config) { c.Retry.RetryOn = []string{"teapot"} },
			wantErr: "unknown failure kind",
		},
		{
			name:    "burst without room",
			modify:  func(c *Config) { c.RateLimit = RateLimitConfig{RequestsPerSecond: 1} },
			wantErr: "rate_limit.burst",
		},
		{
			name:    "unknown level",
			modify:  func(c *Config) { c.Logging.Level = "LOUD" },
			wantErr: "logging.level must be one of",
		},
		{
			name:    "unknown format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "unknown debug category",
			modify:  func(c *Config) { c.Logging.Debug = []string{"everything"} },
			wantErr: "unknown category",
		},
		{
			name: "metrics path",
			modify: func(c *Config) {
				c.Observability.Metrics.Enabled = true
				c.Observability.Metrics.Path = "metrics"
			},
			wantErr: "observability.metrics.path",
		},
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Gateway.BaseURL = "https://api.zaguanai.com"
			cfg.Gateway.APIKey = "sk-test"
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationReportsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Timeout = -time.Second
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"gateway.base_url", "gateway.api_key", "gateway.timeout", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %s", err, want)
		}
	}
}

func TestClientConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.BaseURL = "https://api.zaguanai.com"
	cfg.Gateway.APIKey = "sk"
	cfg.Retry.RetryOn = []string{"timeout"}
	cfg.RateLimit = RateLimitConfig{RequestsPerSecond: 3, Burst: 2}

	cc, err := cfg.Client()
	if err != nil {
		t.Fatalf("Client() error: %v", err)
	}
	if cc.BaseURL != cfg.Gateway.BaseURL || cc.APIKey != "sk" || cc.RateLimit != 3 || cc.RateBurst != 2 {
		t.Errorf("client config = %+v", cc)
	}
	if cc.Retry == nil || len(cc.Retry.RetryOn) != 1 || cc.Retry.RetryOn[0] != failure.KindTimeout {
		t.Errorf("retry = %+v", cc.Retry)
	}

	if _, err := client.New(cc); err != nil {
		t.Errorf("client.New rejected converted config: %v", err)
	}

	cfg.Retry.RetryOn = []string{"bogus"}
	if _, err := cfg.Client(); err == nil {
		t.Error("expected error for unknown retry kind")
	}
}

// isolate moves the test into an empty working directory with an empty
// user config directory and no ZAGUAN_* variables. It returns the working
// directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "config"))
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "ZAGUAN_") {
			t.Setenv(key, "")
		}
	}
	return dir
}

// unsetenv removes key for the duration of the test so that .env files
// may set it.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

// writeTemp creates a temporary file with the given content and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return f.Name()
}
