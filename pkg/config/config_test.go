package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drover.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
fleet_id: fleet-1
region: us-west-2
heartbeat_interval: 30s
capabilities:
  amounts:
    - name: amount.worker.gpu
      value: 2
  attributes:
    - name: attr.worker.pool
      values: [render, sim]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fleet-1", cfg.FleetID)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval.Std())
	// Untouched keys keep their defaults.
	assert.Equal(t, "/var/lib/drover", cfg.WorkerDir)
	assert.Equal(t, ":9465", cfg.MetricsAddr)

	caps := cfg.Capabilities.Build()
	gpu, ok := caps.Amount("amount.worker.gpu")
	require.True(t, ok)
	assert.Equal(t, float64(2), gpu)
	pool, ok := caps.Attribute("attr.worker.pool")
	require.True(t, ok)
	assert.Equal(t, []string{"render", "sim"}, pool)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "heartbeat_interval: soon")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "fleet_id: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) { c.FleetID = "fleet-1" }, ""},
		{"missing fleet", func(c *Config) {}, "fleet_id"},
		{"missing worker dir", func(c *Config) { c.FleetID = "fleet-1"; c.WorkerDir = "" }, "worker_dir"},
		{"bad interval", func(c *Config) { c.FleetID = "fleet-1"; c.HeartbeatInterval = 0 }, "heartbeat_interval"},
		{"endpoint without region", func(c *Config) { c.FleetID = "fleet-1"; c.Endpoint = "https://example.com" }, "region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestResolvedLogDir(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/var/lib/drover/logs", cfg.ResolvedLogDir())

	cfg.LogDir = "/var/log/drover"
	assert.Equal(t, "/var/log/drover", cfg.ResolvedLogDir())
}
