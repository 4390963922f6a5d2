// ABOUTME: Configuration loading and parsing for relay-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Routes   RoutesConfig   `yaml:"routes"`
	Signing  SigningConfig  `yaml:"signing"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// RoutesConfig selects the route-profile backend and refresh cadence
type RoutesConfig struct {
	// Backend is one of "file", "sqlite", or "postgres"
	Backend string `yaml:"backend"`

	// Connection is the file path or database connection string
	Connection string `yaml:"connection"`

	RefreshInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RefreshIntervalRaw string `yaml:"refresh_interval"`
}

// SigningConfig holds the peer-protocol authentication settings.
// PublicID and PrivateSecret must be supplied together or not at all;
// leaving both empty disables authentication entirely.
type SigningConfig struct {
	PublicID            string `yaml:"public_id"`
	PrivateSecret       string `yaml:"private_secret"`
	AllowedDeltaSeconds int    `yaml:"allowed_delta_seconds"`

	// ForwardSigned marks this instance as remotely terminated: peer
	// sessions sign their outbound requests.
	ForwardSigned bool `yaml:"forward_signed"`
}

// DefaultsConfig holds per-route fallbacks
type DefaultsConfig struct {
	UserAgent string `yaml:"user_agent"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const defaultRefreshInterval = 60 * time.Second

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible fallbacks
func (c *Config) applyDefaults() {
	if c.Routes.RefreshInterval == 0 {
		c.Routes.RefreshInterval = defaultRefreshInterval
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Routes.Backend {
	case "file", "sqlite", "postgres":
	case "":
		return fmt.Errorf("routes.backend is required")
	default:
		return fmt.Errorf("routes.backend %q must be file, sqlite, or postgres", c.Routes.Backend)
	}

	if c.Routes.Connection == "" {
		return fmt.Errorf("routes.connection is required")
	}

	// Both-or-neither: a public id without a secret (or vice versa)
	// silently weakens authentication, so refuse it outright.
	if (c.Signing.PublicID == "") != (c.Signing.PrivateSecret == "") {
		return fmt.Errorf("signing.public_id and signing.private_secret must be supplied together")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Routes.RefreshIntervalRaw != "" {
		interval, err := time.ParseDuration(cfg.Routes.RefreshIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing refresh_interval %q: %w", cfg.Routes.RefreshIntervalRaw, err)
		}
		if interval <= 0 {
			return fmt.Errorf("refresh_interval must be positive, got %q", cfg.Routes.RefreshIntervalRaw)
		}
		cfg.Routes.RefreshInterval = interval
	}
	return nil
}
