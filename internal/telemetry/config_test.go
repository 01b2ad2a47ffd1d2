package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "projectd", cfg.ServiceName)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, "service_name"},
		{"missing version", func(c *Config) { c.ServiceVersion = "" }, "service_version"},
		{"unknown protocol", func(c *Config) { c.Protocol = "udp" }, "protocol must be"},
		{"logs over http", func(c *Config) {
			c.Protocol = ProtocolHTTP
			c.Logs.Enabled = true
		}, "log export requires"},
		{"insecure remote", func(c *Config) { c.Endpoint = "collector.example.com:4317" }, "insecure connections"},
		{"sampling above one", func(c *Config) { c.Sampling.Rate = 1.5 }, "sampling.rate"},
		{"zero export interval", func(c *Config) { c.Metrics.ExportInterval = 0 }, "export_interval"},
		{"zero shutdown", func(c *Config) { c.Shutdown.Timeout = 0 }, "shutdown.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := &Config{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_RemoteTLS(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "https://collector.example.com:4318"
	cfg.Protocol = ProtocolHTTP
	cfg.Insecure = false
	assert.NoError(t, cfg.Validate())
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":             true,
		"127.0.0.1:4317":             true,
		"127.0.0.53:4317":            true,
		"[::1]:4317":                 true,
		"::1":                        true,
		"http://localhost:4318":      true,
		"collector:4317":             false,
		"10.0.0.5:4317":              false,
		"https://otel.example.com":   false,
		"localhost.example.com:4317": false,
	}
	for endpoint, want := range tests {
		cfg := &Config{Endpoint: endpoint}
		assert.Equal(t, want, cfg.isLocalEndpoint(), endpoint)
	}
}

func TestFromObservability(t *testing.T) {
	obs := config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "projectd-staging",
		Endpoint:        "localhost:4318",
		Protocol:        "http",
		Insecure:        true,
		SamplingRate:    0.25,
	}

	cfg := FromObservability(obs, "1.2.3", false)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "projectd-staging", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, 0.25, cfg.Sampling.Rate)
	assert.False(t, cfg.Logs.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.NoError(t, cfg.Validate())

	empty := FromObservability(config.ObservabilityConfig{}, "", true)
	assert.Equal(t, "projectd", empty.ServiceName)
	assert.Equal(t, "dev", empty.ServiceVersion)
	assert.True(t, empty.Logs.Enabled)
}
