// Package config provides configuration management for compliq-mcp.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// DefaultPort is the gateway HTTP listen port.
	DefaultPort = 8411
	// DefaultHeartbeatSeconds is the SSE heartbeat interval.
	DefaultHeartbeatSeconds = 5
	// DefaultUpstreamTimeoutSeconds bounds one COMPLiQ API call.
	DefaultUpstreamTimeoutSeconds = 30
)

// Config holds the runtime configuration. Values come from the
// settings file overlaid with environment variables; the API key is
// environment-only and never written back to disk.
type Config struct {
	APIKey                 string `json:"-"`
	Port                   int    `json:"port"`
	BaseURL                string `json:"base_url"`
	EndpointsPath          string `json:"endpoints_path"`
	HeartbeatSeconds       int    `json:"heartbeat_seconds"`
	UpstreamTimeoutSeconds int    `json:"upstream_timeout_seconds"`
	SessionStore           string `json:"session_store"` // "", "sqlite" or "redis"
	SessionDBPath          string `json:"session_db_path"`
	RedisAddr              string `json:"redis_addr"`
	Debug                  bool   `json:"debug"`
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                   DefaultPort,
		HeartbeatSeconds:       DefaultHeartbeatSeconds,
		UpstreamTimeoutSeconds: DefaultUpstreamTimeoutSeconds,
		SessionDBPath:          filepath.Join(DataDir(), "sessions.db"),
	}
}

// DataDir returns the data directory (~/.compliq-mcp).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".compliq-mcp")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load builds the configuration: defaults, then the settings file if it
// exists, then environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// Get returns the cached configuration, loading it on first use and
// falling back to defaults when the settings file is unreadable.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()

	if cached == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
			applyEnv(cfg)
		}
		cached = cfg
	}
	return cached
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	cachedMu.Lock()
	cached = nil
	cachedMu.Unlock()
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COMPLIQ_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("COMPLIQ_MCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := os.Getenv("COMPLIQ_API_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("COMPLIQ_MCP_ENDPOINTS"); v != "" {
		cfg.EndpointsPath = v
	}
	if v := os.Getenv("COMPLIQ_MCP_SESSION_STORE"); v != "" {
		cfg.SessionStore = v
	}
	if v := os.Getenv("COMPLIQ_MCP_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("COMPLIQ_MCP_DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}
}

// HeartbeatInterval returns the SSE heartbeat interval as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	if c.HeartbeatSeconds <= 0 {
		return DefaultHeartbeatSeconds * time.Second
	}
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// UpstreamTimeout returns the upstream call timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutSeconds <= 0 {
		return DefaultUpstreamTimeoutSeconds * time.Second
	}
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}
