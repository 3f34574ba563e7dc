// Package config provides configuration loading and validation for the
// StreamBridge gateway process. Configuration comes from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/streambridge/errors"
)

// Config represents the complete gateway process configuration
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Bus     BusConfig     `yaml:"bus"`
	Domain  DomainConfig  `yaml:"domain"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig holds the liveness parameters of the two gateway loops.
// Both are deployment-tunable: the discovery timeout bounds how long the
// discovery loop may block before re-checking the running flag, and the
// forwarding interval is the cadence of the forwarding pass.
type GatewayConfig struct {
	ForwardingInterval time.Duration `yaml:"forwarding_interval"`
	DiscoveryTimeout   time.Duration `yaml:"discovery_timeout"`
}

// BusConfig holds local bus (NATS) connection settings
type BusConfig struct {
	URL              string        `yaml:"url"`
	Name             string        `yaml:"name"`
	DiscoverySubject string        `yaml:"discovery_subject"`
	DataSubjectRoot  string        `yaml:"data_subject_root"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	ReconnectWait    time.Duration `yaml:"reconnect_wait"`
	MaxReconnects    int           `yaml:"max_reconnects"`
	UseJetStream     bool          `yaml:"use_jetstream"`
	StreamName       string        `yaml:"stream_name"`
	PendingLimit     int           `yaml:"pending_limit"`
}

// DomainConfig holds external messaging domain (WebSocket) settings
type DomainConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
}

// MetricsConfig holds metrics HTTP server settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds process-wide logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults for local use
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ForwardingInterval: 50 * time.Millisecond,
			DiscoveryTimeout:   100 * time.Millisecond,
		},
		Bus: BusConfig{
			URL:              "nats://127.0.0.1:4222",
			Name:             "streambridge",
			DiscoverySubject: "streambridge.discovery",
			DataSubjectRoot:  "streambridge.data",
			ConnectTimeout:   5 * time.Second,
			ReconnectWait:    2 * time.Second,
			MaxReconnects:    -1,
			StreamName:       "STREAMBRIDGE_DISCOVERY",
			PendingLimit:     256,
		},
		Domain: DomainConfig{
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
			ReadTimeout:      5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9402",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, fills in defaults for unset
// fields, applies environment overrides, and validates the result. An empty
// path yields the defaults (with env overrides applied).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", "parse config file")
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies deployment overrides from the environment
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STREAMBRIDGE_BUS_URL"); v != "" {
		c.Bus.URL = v
	}
	if v := os.Getenv("STREAMBRIDGE_DOMAIN_ENDPOINT"); v != "" {
		c.Domain.Endpoint = v
	}
	if v := os.Getenv("STREAMBRIDGE_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("STREAMBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate ensures the configuration is internally consistent
func (c *Config) Validate() error {
	if c.Gateway.ForwardingInterval <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("forwarding_interval must be positive, got %v", c.Gateway.ForwardingInterval),
			"config", "Validate", "gateway settings")
	}
	if c.Gateway.DiscoveryTimeout <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("discovery_timeout must be positive, got %v", c.Gateway.DiscoveryTimeout),
			"config", "Validate", "gateway settings")
	}
	if c.Bus.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "bus url")
	}
	if c.Bus.DiscoverySubject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "bus discovery subject")
	}
	if c.Bus.DataSubjectRoot == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "bus data subject root")
	}
	if c.Bus.UseJetStream && c.Bus.StreamName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "jetstream stream name")
	}
	if c.Bus.PendingLimit <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("pending_limit must be positive, got %d", c.Bus.PendingLimit),
			"config", "Validate", "bus settings")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown log level %q", c.Logging.Level),
			"config", "Validate", "logging settings")
	}

	return nil
}
