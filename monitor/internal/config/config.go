package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval      = 2 * time.Second
	DefaultSourceTimeout     = 10 * time.Second
	DefaultBroadcastInterval = 5 * time.Second
	DefaultHTTPPort          = 8080
	DefaultLabelLayout       = "15:04:05"
	DefaultAlertCooldown     = 15 * time.Minute
	DefaultUnavailableAfter  = 3
	DefaultReportTitle       = "Smart Health Monitoring System"
	DefaultReportFooter      = "© 2025 Smart Health Monitoring System"
	DefaultReportFilename    = "Health_Report.xlsx"
	DefaultAPIKeyHeader      = "X-API-Key"
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

// MonitorConfig holds all monitor settings.
type MonitorConfig struct {
	// PollInterval controls how often the source is fetched.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LabelLayout is the time.Format layout used for reading labels.
	LabelLayout string `yaml:"label_layout"`

	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval is the WebSocket keep-alive snapshot period.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Log     LogConfig     `yaml:"log"`
	Source  Source        `yaml:"source"`
	APIAuth APIAuthConfig `yaml:"api_auth"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Report  ReportConfig  `yaml:"report"`
}

// LogConfig selects slog verbosity and output format.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// Source describes the remote vital-sign endpoint.
type Source struct {
	// Endpoint is the full URL polled with HTTP GET.
	Endpoint string `yaml:"endpoint"`

	// Format is the response body format: json | prometheus.
	Format string `yaml:"format"`

	// Timeout bounds a single fetch.
	Timeout time.Duration `yaml:"timeout"`

	// Fields maps each vital to its key in the response body.
	Fields FieldMap `yaml:"fields"`

	// Auth configures how the monitor authenticates to the source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// FieldMap names the response keys (JSON) or metric families (Prometheus)
// carrying each vital.
type FieldMap struct {
	HeartRate   string `yaml:"heart_rate"`
	SpO2        string `yaml:"spo2"`
	Temperature string `yaml:"temperature"`
}

// AuthConfig specifies the authentication mode for the source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header name the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// APIAuthConfig configures authentication of incoming REST API requests.
type APIAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header carries the key; defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the expected API key resolved from the environment.
func (a APIAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// AlertsConfig holds notification settings. The risk thresholds themselves
// are compiled in and cannot be configured.
type AlertsConfig struct {
	// Cooldown suppresses re-fires of the same alert for this duration.
	Cooldown time.Duration `yaml:"cooldown"`

	// UnavailableAfter is the number of consecutive failed cycles after
	// which the source-unavailable alert fires.
	UnavailableAfter int `yaml:"unavailable_after"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ReportConfig controls the exported report's fixed text.
type ReportConfig struct {
	Title    string `yaml:"title"`
	Footer   string `yaml:"footer"`
	Filename string `yaml:"filename"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollInterval:      DefaultPollInterval,
			LabelLayout:       DefaultLabelLayout,
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
			Log: LogConfig{
				Level:  "info",
				Format: "json",
			},
			Source: Source{
				Format:  "json",
				Timeout: DefaultSourceTimeout,
				Fields: FieldMap{
					HeartRate:   "heartrate",
					SpO2:        "spo2",
					Temperature: "temperature",
				},
			},
			APIAuth: APIAuthConfig{
				Mode:   "none",
				Header: DefaultAPIKeyHeader,
			},
			Alerts: AlertsConfig{
				Cooldown:         DefaultAlertCooldown,
				UnavailableAfter: DefaultUnavailableAfter,
			},
			Report: ReportConfig{
				Title:    DefaultReportTitle,
				Footer:   DefaultReportFooter,
				Filename: DefaultReportFilename,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.Source.Endpoint == "" {
		return fmt.Errorf("monitor.source.endpoint is required")
	}
	if m.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive")
	}
	if m.BroadcastInterval <= 0 {
		return fmt.Errorf("monitor.broadcast_interval must be positive")
	}
	if m.Source.Timeout <= 0 {
		return fmt.Errorf("monitor.source.timeout must be positive")
	}
	if m.HTTPPort <= 0 || m.HTTPPort > 65535 {
		return fmt.Errorf("monitor.http_port %d out of range", m.HTTPPort)
	}
	if m.LabelLayout == "" {
		return fmt.Errorf("monitor.label_layout must not be empty")
	}
	switch m.Source.Format {
	case "json", "prometheus":
	default:
		return fmt.Errorf("monitor.source.format: unknown format %q", m.Source.Format)
	}
	f := m.Source.Fields
	if f.HeartRate == "" || f.SpO2 == "" || f.Temperature == "" {
		return fmt.Errorf("monitor.source.fields: all three field names are required")
	}
	switch m.Source.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("monitor.source.auth: unknown mode %q", m.Source.Auth.Mode)
	}
	if m.Source.Auth.Mode == "apikey" && m.Source.Auth.Header == "" {
		return fmt.Errorf("monitor.source.auth: header is required for apikey mode")
	}
	switch m.APIAuth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("monitor.api_auth: unknown mode %q", m.APIAuth.Mode)
	}
	switch m.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("monitor.log.level: unknown level %q", m.Log.Level)
	}
	switch m.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("monitor.log.format: unknown format %q", m.Log.Format)
	}
	if m.Alerts.UnavailableAfter <= 0 {
		return fmt.Errorf("monitor.alerts.unavailable_after must be positive")
	}
	for i, wh := range m.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("monitor.alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	return nil
}
