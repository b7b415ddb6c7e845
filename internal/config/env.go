package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StaleLastResponseWins  = "last-response-wins"
	StaleLatestRequestWins = "latest-request-wins"
)

// EnvConfig is the full runtime configuration. Values come from defaults, then
// an optional YAML file, then environment variables.
type EnvConfig struct {
	ConfigPath string              `yaml:"-"`
	Server     ServerEnvConfig     `yaml:"server"`
	Summarizer SummarizerEnvConfig `yaml:"summarizer"`
	Desk       DeskEnvConfig       `yaml:"desk"`
	OTel       OTelEnvConfig       `yaml:"otel"`
}

type ServerEnvConfig struct {
	Addr string `yaml:"addr"`
	// RefreshInterval is how often a loading page asks the browser to reload.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CookieSecure    bool          `yaml:"cookie_secure"`
}

type SummarizerEnvConfig struct {
	BaseURL string `yaml:"base_url"`
	// HTTPTimeout of zero means requests wait until the backend answers.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	UserAgent   string        `yaml:"user_agent"`
}

type DeskEnvConfig struct {
	StalePolicy    string        `yaml:"stale_policy"`
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
	SweepSchedule  string        `yaml:"sweep_schedule"`
}

type OTelEnvConfig struct {
	Enabled     bool              `yaml:"enabled"`
	ServiceName string            `yaml:"service_name"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"` // "grpc" or "http/protobuf"
	Headers     map[string]string `yaml:"headers"`
	Insecure    bool              `yaml:"insecure"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

func Defaults() EnvConfig {
	return EnvConfig{
		ConfigPath: "summary-desk.yaml",
		Server: ServerEnvConfig{
			Addr:            ":3000",
			RefreshInterval: 2 * time.Second,
		},
		Summarizer: SummarizerEnvConfig{
			BaseURL:   "http://localhost:8888",
			UserAgent: "summary-desk/0.1",
		},
		Desk: DeskEnvConfig{
			StalePolicy:    StaleLastResponseWins,
			SessionIdleTTL: 2 * time.Hour,
			SweepSchedule:  "@every 10m",
		},
		OTel: OTelEnvConfig{
			ServiceName: "summary-desk",
			Protocol:    "grpc",
			SampleRatio: 1.0,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// SUMMARY_DESK_CONFIG (skipped when missing) and the environment.
func Load() (EnvConfig, error) {
	cfg := Defaults()
	cfg.ConfigPath = envString("SUMMARY_DESK_CONFIG", cfg.ConfigPath)

	if err := loadFile(cfg.ConfigPath, &cfg); err != nil {
		return EnvConfig{}, err
	}
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *EnvConfig) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg EnvConfig) EnvConfig {
	cfg.Server.Addr = envString("SUMMARY_DESK_ADDR", cfg.Server.Addr)
	cfg.Server.RefreshInterval = envDuration("SUMMARY_DESK_REFRESH_INTERVAL", cfg.Server.RefreshInterval)
	cfg.Server.CookieSecure = envBool("SUMMARY_DESK_COOKIE_SECURE", cfg.Server.CookieSecure)

	// REACT_APP_BACKEND_URL is honoured so existing deployments keep working.
	baseURL := envString("REACT_APP_BACKEND_URL", cfg.Summarizer.BaseURL)
	cfg.Summarizer.BaseURL = strings.TrimRight(envString("SUMMARIZER_BASE_URL", baseURL), "/")
	cfg.Summarizer.HTTPTimeout = envDuration("SUMMARIZER_HTTP_TIMEOUT", cfg.Summarizer.HTTPTimeout)
	cfg.Summarizer.UserAgent = envString("SUMMARIZER_USER_AGENT", cfg.Summarizer.UserAgent)

	cfg.Desk.StalePolicy = strings.ToLower(envString("SUMMARY_DESK_STALE_POLICY", cfg.Desk.StalePolicy))
	cfg.Desk.SessionIdleTTL = envDuration("SUMMARY_DESK_SESSION_IDLE_TTL", cfg.Desk.SessionIdleTTL)
	cfg.Desk.SweepSchedule = envString("SUMMARY_DESK_SWEEP_SCHEDULE", cfg.Desk.SweepSchedule)

	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint))
	cfg.OTel.Enabled = envBool("OTEL_ENABLED", cfg.OTel.Enabled)
	cfg.OTel.ServiceName = envString("OTEL_SERVICE_NAME", cfg.OTel.ServiceName)
	cfg.OTel.Endpoint = otlpEndpoint
	cfg.OTel.Protocol = strings.ToLower(envString("OTEL_EXPORTER_OTLP_PROTOCOL", cfg.OTel.Protocol))
	if headers := parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")); headers != nil {
		cfg.OTel.Headers = headers
	}
	cfg.OTel.Insecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTel.Insecure || defaultInsecure(otlpEndpoint))
	cfg.OTel.SampleRatio = clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", cfg.OTel.SampleRatio))
	return cfg
}

func (c EnvConfig) Validate() error {
	u, err := url.Parse(c.Summarizer.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid summarizer base url %q: %w", c.Summarizer.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("summarizer base url %q must be an absolute http(s) url", c.Summarizer.BaseURL)
	}
	switch c.Desk.StalePolicy {
	case StaleLastResponseWins, StaleLatestRequestWins:
	default:
		return fmt.Errorf("unknown stale policy %q (expected %s or %s)", c.Desk.StalePolicy, StaleLastResponseWins, StaleLatestRequestWins)
	}
	if c.Server.RefreshInterval < time.Second {
		return fmt.Errorf("refresh interval must be at least 1s, got %s", c.Server.RefreshInterval)
	}
	if c.Summarizer.HTTPTimeout < 0 {
		return fmt.Errorf("summarizer http timeout must not be negative")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:") ||
		strings.HasPrefix(endpoint, "0.0.0.0:")
}
