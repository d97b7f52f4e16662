// Package config provides configuration management for the employees API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultServerPort       = 8080
	DefaultProbePort        = 9090
	DefaultLogLevel         = "info"
	DefaultLogFormat        = LogFormatJSON
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMetricsEnabled   = true
	DefaultEventsEnabled    = true
	DefaultPageLimit        = 10
	DefaultMaxPageLimit     = 100
	DefaultMaxBulkItems     = 1000
	DefaultMaxBodyBytes     = 1 << 20
	DefaultAllowedOriginAll = "*"
)

// Log encodings.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Environment variable names.
const (
	EnvConfigFile      = "APP_CONFIG_FILE"
	EnvServerPort      = "APP_SERVER_PORT"
	EnvProbePort       = "APP_PROBE_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvLogFormat       = "APP_LOG_FORMAT"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvEventsEnabled   = "APP_EVENTS_ENABLED"
	EnvPageLimit       = "APP_PAGE_LIMIT"
	EnvMaxPageLimit    = "APP_MAX_PAGE_LIMIT"
	EnvMaxBulkItems    = "APP_MAX_BULK_ITEMS"
	EnvMaxBodyBytes    = "APP_MAX_BODY_BYTES"
	EnvAllowedOrigins  = "APP_ALLOWED_ORIGINS"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int           `yaml:"server_port"`
	ProbePort       int           `yaml:"probe_port"` // Probe server port (0 = disabled).
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	EventsEnabled   bool          `yaml:"events_enabled"`

	// API settings.
	PageLimit      int      `yaml:"page_limit"`
	MaxPageLimit   int      `yaml:"max_page_limit"`
	MaxBulkItems   int      `yaml:"max_bulk_items"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be one of: json, console")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidProbePort       = errors.New(
		"probe port must be between 0 and 65535",
	)
	ErrProbePortConflict = errors.New(
		"probe port must differ from server port when probe port is not 0",
	)
	ErrInvalidPageLimit = errors.New(
		"page limit must be positive and not exceed the max page limit",
	)
	ErrInvalidMaxBulkItems = errors.New("max bulk items must be positive")
	ErrInvalidMaxBodyBytes = errors.New("max body bytes must be positive")
	ErrNoAllowedOrigins    = errors.New("at least one allowed origin must be set")
)

// Load builds the configuration from defaults, an optional YAML file named
// by APP_CONFIG_FILE, and environment variables, in increasing priority.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		ServerPort:      DefaultServerPort,
		ProbePort:       DefaultProbePort,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		EventsEnabled:   DefaultEventsEnabled,
		PageLimit:       DefaultPageLimit,
		MaxPageLimit:    DefaultMaxPageLimit,
		MaxBulkItems:    DefaultMaxBulkItems,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		AllowedOrigins:  []string{DefaultAllowedOriginAll},
	}
}

// loadFromFile overlays values present in a YAML file.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	if err := c.loadAPIEnv(); err != nil {
		return err
	}

	return nil
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if err := envInt(EnvServerPort, &c.ServerPort); err != nil {
		return err
	}

	if err := envInt(EnvProbePort, &c.ProbePort); err != nil {
		return err
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvLogFormat); val != "" {
		c.LogFormat = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if err := envBool(EnvMetricsEnabled, &c.MetricsEnabled); err != nil {
		return err
	}

	return envBool(EnvEventsEnabled, &c.EventsEnabled)
}

// loadAPIEnv loads request-handling limits.
func (c *Config) loadAPIEnv() error {
	if err := envInt(EnvPageLimit, &c.PageLimit); err != nil {
		return err
	}

	if err := envInt(EnvMaxPageLimit, &c.MaxPageLimit); err != nil {
		return err
	}

	if err := envInt(EnvMaxBulkItems, &c.MaxBulkItems); err != nil {
		return err
	}

	if val := os.Getenv(EnvMaxBodyBytes); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxBodyBytes, err)
		}
		c.MaxBodyBytes = n
	}

	if val := os.Getenv(EnvAllowedOrigins); val != "" {
		c.AllowedOrigins = splitList(val)
	}

	return nil
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = b
	return nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	return nil
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.ProbePort < 0 || c.ProbePort > 65535 {
		return ErrInvalidProbePort
	}

	if c.ProbePort != 0 && c.ProbePort == c.ServerPort {
		return ErrProbePortConflict
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatConsole {
		return ErrInvalidLogFormat
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

// validateAPI validates request-handling limits.
func (c *Config) validateAPI() error {
	if c.MaxPageLimit < 1 || c.PageLimit < 1 || c.PageLimit > c.MaxPageLimit {
		return ErrInvalidPageLimit
	}

	if c.MaxBulkItems < 1 {
		return ErrInvalidMaxBulkItems
	}

	if c.MaxBodyBytes < 1 {
		return ErrInvalidMaxBodyBytes
	}

	if len(c.AllowedOrigins) == 0 {
		return ErrNoAllowedOrigins
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ProbeAddress returns the probe server address in host:port format.
func (c *Config) ProbeAddress() string {
	return fmt.Sprintf(":%d", c.ProbePort)
}
