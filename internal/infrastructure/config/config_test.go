package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setenv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 1500*time.Millisecond, cfg.Preview.Debounce.Std())
	assert.Equal(t, "unpkg.com", cfg.Preview.CDNHost)
	assert.Equal(t, "automatic", cfg.Preview.Mode)
	assert.Equal(t, "data/projects.db", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.Storage.BusyTimeout.Std())
	assert.Equal(t, "NORMAL", cfg.Storage.Synchronous)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Std())
	assert.Equal(t, "templates", cfg.Templates.Dir)
	assert.Equal(t, 5*time.Second, cfg.CDN.ProbeTimeout.Std())
	assert.Equal(t, 2, cfg.CDN.ProbeRetries)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	setenv(t, map[string]string{
		"PORT":                 "9000",
		"HOST":                 "127.0.0.1",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
		"RATE_LIMIT_RPS":       "500",
		"RATE_LIMIT_BURST":     "1000",
		"RATE_LIMIT_ENABLED":   "false",
		"PREVIEW_DEBOUNCE":     "750ms",
		"PREVIEW_CDN_HOST":     "cdn.jsdelivr.net/npm",
		"PREVIEW_MODE":         "manual",
		"STORAGE_PATH":         "/tmp/p.db",
		"STORAGE_BUSY_TIMEOUT": "2500ms",
		"STORAGE_SYNCHRONOUS":  "full",
		"AUTH_SECRET":          "0123456789abcdef0123",
		"AUTH_TOKEN_TTL":       "1h",
		"TEMPLATES_DIR":        "/srv/templates",
		"CDN_PROBE_TIMEOUT":    "3s",
		"CDN_PROBE_RETRIES":    "4",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Preview.Debounce.Std())
	assert.Equal(t, "cdn.jsdelivr.net/npm", cfg.Preview.CDNHost)
	assert.Equal(t, "manual", cfg.Preview.Mode)
	assert.Equal(t, "/tmp/p.db", cfg.Storage.Path)
	assert.Equal(t, 2500*time.Millisecond, cfg.Storage.BusyTimeout.Std())
	assert.Equal(t, "full", cfg.Storage.Synchronous)
	assert.Equal(t, "0123456789abcdef0123", cfg.Auth.Secret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL.Std())
	assert.Equal(t, "/srv/templates", cfg.Templates.Dir)
	assert.Equal(t, 3*time.Second, cfg.CDN.ProbeTimeout.Std())
	assert.Equal(t, 4, cfg.CDN.ProbeRetries)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	setenv(t, map[string]string{"PORT": "3000", "LOG_LEVEL": "warn"})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1500*time.Millisecond, cfg.Preview.Debounce.Std())
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "7000"

[preview]
debounce = "250ms"
mode = "manual"
headless = true

[cdn]
probe_retries = 5
`), 0o644))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 250*time.Millisecond, cfg.Preview.Debounce.Std())
		assert.Equal(t, "manual", cfg.Preview.Mode)
		assert.True(t, cfg.Preview.Headless)
		assert.Equal(t, "unpkg.com", cfg.Preview.CDNHost)
		assert.Equal(t, 5, cfg.CDN.ProbeRetries)
	})

	t.Run("environment over file", func(t *testing.T) {
		setenv(t, map[string]string{"PORT": "7100", "PREVIEW_MODE": "automatic"})
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "7100", cfg.Server.Port)
		assert.Equal(t, "automatic", cfg.Preview.Mode)
		assert.Equal(t, 250*time.Millisecond, cfg.Preview.Debounce.Std())
	})

	t.Run("CONFIG_FILE", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", path)
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Server.Port)
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad duration", env: map[string]string{"PREVIEW_DEBOUNCE": "soon"}},
		{name: "bad mode", env: map[string]string{"PREVIEW_MODE": "sometimes"}},
		{name: "bad int", env: map[string]string{"RATE_LIMIT_RPS": "many"}},
		{name: "bad synchronous", env: map[string]string{"STORAGE_SYNCHRONOUS": "NORMAL; DROP TABLE projects"}},
		{name: "negative busy timeout", env: map[string]string{"STORAGE_BUSY_TIMEOUT": "-1s"}},
		{name: "malformed file", file: "[server\nport = "},
		{name: "missing file", file: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setenv(t, tt.env)

			path := ""
			switch tt.file {
			case "":
			case "-":
				path = filepath.Join(t.TempDir(), "absent.toml")
			default:
				path = filepath.Join(t.TempDir(), "bad.toml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}

			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{name: "default values", wantPort: "8000", wantHost: "0.0.0.0"},
		{name: "custom port", port: "9000", wantPort: "9000", wantHost: "0.0.0.0"},
		{name: "custom host", host: "localhost", wantPort: "8000", wantHost: "localhost"},
		{name: "custom port and host", port: "3000", host: "127.0.0.1", wantPort: "3000", wantHost: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
