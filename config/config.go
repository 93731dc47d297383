// Package config holds the action server configuration, loaded from YAML
// with validated defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

// ServerConfig configures the HTTP action server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// BasePath is the URL prefix actions are mounted under.
	BasePath string `yaml:"base_path"`
	// MaxRequestSize caps request bodies in bytes.
	MaxRequestSize int64 `yaml:"max_request_size"`
	// RequestTimeout bounds one action execution.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// StreamBufferSize is the frame buffer for streaming actions.
	StreamBufferSize int `yaml:"stream_buffer_size"`
	// EnableCORS toggles CORS headers for browser clients.
	EnableCORS bool `yaml:"enable_cors"`
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`
	// MetricsPath serves prometheus metrics when non-empty.
	MetricsPath string `yaml:"metrics_path"`
}

// ClientConfig configures client invokers built from this config.
type ClientConfig struct {
	// Timeout bounds one transport call.
	Timeout time.Duration `yaml:"timeout"`
	// StreamTimeout bounds one full stream consumption, from call start.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8080",
			BasePath:         "/api/actions",
			MaxRequestSize:   1 << 20, // 1 MiB
			RequestTimeout:   30 * time.Second,
			StreamBufferSize: 16,
			EnableCORS:       false,
			MetricsPath:      "/metrics",
		},
		Client: ClientConfig{
			Timeout:       10 * time.Second,
			StreamTimeout: 60 * time.Second,
		},
	}
}

// Load reads a YAML config file and overlays it onto the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config: server.base_path must start with /")
	}
	if c.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("config: server.max_request_size must be positive")
	}
	if c.Server.StreamBufferSize <= 0 {
		return fmt.Errorf("config: server.stream_buffer_size must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("config: server.request_timeout must be positive")
	}
	return nil
}
