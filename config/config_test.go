package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50*time.Millisecond, cfg.Gateway.ForwardingInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Gateway.DiscoveryTimeout)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Bus.URL)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streambridge.yaml")

	content := `
gateway:
  forwarding_interval: 20ms
  discovery_timeout: 250ms
bus:
  url: nats://bus.internal:4222
  use_jetstream: true
domain:
  endpoint: wss://domain.example.com/ingest
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Gateway.ForwardingInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.DiscoveryTimeout)
	assert.Equal(t, "nats://bus.internal:4222", cfg.Bus.URL)
	assert.True(t, cfg.Bus.UseJetStream)
	assert.Equal(t, "wss://domain.example.com/ingest", cfg.Domain.Endpoint)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their defaults
	assert.Equal(t, "streambridge.discovery", cfg.Bus.DiscoverySubject)
	assert.Equal(t, ":9402", cfg.Metrics.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/streambridge.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STREAMBRIDGE_BUS_URL", "nats://override:4222")
	t.Setenv("STREAMBRIDGE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "nats://override:4222", cfg.Bus.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero forwarding interval", func(c *Config) { c.Gateway.ForwardingInterval = 0 }},
		{"zero discovery timeout", func(c *Config) { c.Gateway.DiscoveryTimeout = 0 }},
		{"empty bus url", func(c *Config) { c.Bus.URL = "" }},
		{"empty discovery subject", func(c *Config) { c.Bus.DiscoverySubject = "" }},
		{"jetstream without stream name", func(c *Config) {
			c.Bus.UseJetStream = true
			c.Bus.StreamName = ""
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"nonpositive pending limit", func(c *Config) { c.Bus.PendingLimit = 0 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
