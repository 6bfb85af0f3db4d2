package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
//
// Precedence, lowest first: Default, the TOML file named by CONFIG_FILE (or
// passed to LoadFile), then environment variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LogConfig       `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Preview   PreviewConfig   `toml:"preview"`
	Storage   StorageConfig   `toml:"storage"`
	Auth      AuthConfig      `toml:"auth"`
	Templates TemplatesConfig `toml:"templates"`
	CDN       CDNConfig       `toml:"cdn"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" toml:"port"`
	Host string `envconfig:"HOST" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// PreviewConfig holds the compile/mount settings.
type PreviewConfig struct {
	Debounce Duration `envconfig:"PREVIEW_DEBOUNCE" toml:"debounce"`
	CDNHost  string   `envconfig:"PREVIEW_CDN_HOST" toml:"cdn_host"`
	// BaseURL prefixes the preview URLs handed to browsers.
	BaseURL       string   `envconfig:"PREVIEW_BASE_URL" toml:"base_url"`
	Mode          string   `envconfig:"PREVIEW_MODE" toml:"mode"`
	MaxWorkspaces int      `envconfig:"PREVIEW_MAX_WORKSPACES" toml:"max_workspaces"`
	CheckTimeout  Duration `envconfig:"PREVIEW_CHECK_TIMEOUT" toml:"check_timeout"`
	// Headless replays every mount in the script runtime so overlay errors
	// are pushed to event stream subscribers.
	Headless bool `envconfig:"PREVIEW_HEADLESS" toml:"headless"`
}

// StorageConfig holds the project store location and sqlite pragmas.
type StorageConfig struct {
	Path        string   `envconfig:"STORAGE_PATH" toml:"path"`
	BusyTimeout Duration `envconfig:"STORAGE_BUSY_TIMEOUT" toml:"busy_timeout"`
	Synchronous string   `envconfig:"STORAGE_SYNCHRONOUS" toml:"synchronous"`
}

// AuthConfig holds identity token settings.
type AuthConfig struct {
	Secret   string   `envconfig:"AUTH_SECRET" toml:"secret"`
	TokenTTL Duration `envconfig:"AUTH_TOKEN_TTL" toml:"token_ttl"`
}

// TemplatesConfig holds the starter template location.
type TemplatesConfig struct {
	Dir string `envconfig:"TEMPLATES_DIR" toml:"dir"`
}

// CDNConfig holds dependency probe settings.
type CDNConfig struct {
	ProbeTimeout Duration `envconfig:"CDN_PROBE_TIMEOUT" toml:"probe_timeout"`
	ProbeRetries int      `envconfig:"CDN_PROBE_RETRIES" toml:"probe_retries"`
	ProbeRPS     float64  `envconfig:"CDN_PROBE_RPS" toml:"probe_rps"`
}

// Duration parses "1500ms" style values from both the environment and TOML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load loads configuration from CONFIG_FILE, when set, and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile loads configuration from path, when not empty, and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	// Fields carry no default tags, so unset variables keep the values above.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Preview.Mode {
	case "automatic", "manual":
	default:
		return fmt.Errorf("invalid PREVIEW_MODE %q", c.Preview.Mode)
	}
	if c.Preview.Debounce < 0 {
		return fmt.Errorf("PREVIEW_DEBOUNCE must not be negative")
	}
	if c.Preview.CDNHost == "" {
		return fmt.Errorf("PREVIEW_CDN_HOST is required")
	}
	switch strings.ToUpper(c.Storage.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid STORAGE_SYNCHRONOUS %q", c.Storage.Synchronous)
	}
	if c.Storage.BusyTimeout < 0 {
		return fmt.Errorf("STORAGE_BUSY_TIMEOUT must not be negative")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Preview: PreviewConfig{
			Debounce:      Duration(1500 * time.Millisecond),
			CDNHost:       "unpkg.com",
			Mode:          "automatic",
			MaxWorkspaces: 8,
			CheckTimeout:  Duration(2 * time.Second),
		},
		Storage: StorageConfig{
			Path:        "data/projects.db",
			BusyTimeout: Duration(10 * time.Second),
			Synchronous: "NORMAL",
		},
		Auth: AuthConfig{
			TokenTTL: Duration(24 * time.Hour),
		},
		Templates: TemplatesConfig{
			Dir: "templates",
		},
		CDN: CDNConfig{
			ProbeTimeout: Duration(5 * time.Second),
			ProbeRetries: 2,
			ProbeRPS:     10,
		},
	}
}
