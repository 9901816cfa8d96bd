package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/pulse/internal/config"
	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "pulse.toml", `
service_name = "checkout"
log_level = "debug"
enable_business = false
collection_interval = "30s"
sampler_interval = "5s"
max_metric_points = 500
max_events = 2000

[[probes]]
name = "api"
kind = "http"
url = "http://localhost:8080/healthz"
weight = 8
timeout = "2s"

[[probes]]
name = "memory"
kind = "memory"
weight = 2
timeout = "1s"

[export]
interval = "1m"
format = "prometheus"
sink = "sqlite"
db_path = "/tmp/pulse/archive.db"
retention = "24h"
`)

	cfg, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.EnableBusiness)
	assert.True(t, cfg.EnableHealth)
	assert.Equal(t, 30*time.Second, cfg.CollectionInterval)
	assert.Equal(t, 5*time.Second, cfg.SamplerInterval)
	assert.Equal(t, 500, cfg.MetricsConfig().MaxPoints)
	assert.Equal(t, 2000, cfg.EventsConfig().MaxEvents)

	require.Len(t, cfg.Probes, 2)
	assert.Equal(t, config.ProbeConfig{
		Name:    "api",
		Kind:    config.ProbeHTTP,
		URL:     "http://localhost:8080/healthz",
		Weight:  8,
		Timeout: 2 * time.Second,
	}, cfg.Probes[0])

	assert.Equal(t, time.Minute, cfg.Export.Interval)
	assert.Equal(t, export.Prometheus, cfg.ExportFormat())
	assert.Equal(t, config.SinkSQLite, cfg.Export.Sink)

	tcfg := cfg.TelemetryConfig()
	assert.Equal(t, "/tmp/pulse/archive.db", tcfg.DBPath)
	assert.Equal(t, 24*time.Hour, tcfg.Retention)

	ccfg := cfg.CollectorConfig()
	assert.Equal(t, 30*time.Second, ccfg.Interval)
	assert.False(t, ccfg.EnableBusiness)
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PULSE_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	def := config.DefaultConfig()
	assert.Equal(t, &def, cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "pulse.yaml", "log_level: warning\nmax_events: 10\n")
	t.Setenv("PULSE_CONFIG", path)
	t.Setenv("PULSE_MAX_EVENTS", "42")
	t.Setenv("PULSE_EXPORT_FORMAT", "csv")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, 42, cfg.MaxEvents)
	assert.Equal(t, export.CSV, cfg.ExportFormat())
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, "pulse.toml", "This is not a valid TOML file\n")

	_, err := config.Load(config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "pulse.toml", `log_level = "invalid"`)

	_, err := config.Load(config.WithConfigFile(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_log_level")
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "pulse.toml", `
log_level = "error"
max_events = 100
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level", "debug", "--collection-interval", "0s"}))

	cfg, err := config.Load(config.WithConfigFile(path), config.WithFlags(fs))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Duration(0), cfg.CollectionInterval)
	assert.Equal(t, 100, cfg.MaxEvents)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		code   errors.ErrorCode
	}{
		{"negative collection interval", func(c *config.Config) { c.CollectionInterval = -time.Second }, errors.ErrInvalidConfig},
		{"zero sampler interval", func(c *config.Config) { c.SamplerInterval = 0 }, errors.ErrInvalidConfig},
		{"no metric points", func(c *config.Config) { c.MaxMetricPoints = 0 }, errors.ErrInvalidConfig},
		{"no events", func(c *config.Config) { c.MaxEvents = 0 }, errors.ErrInvalidConfig},
		{"unknown format", func(c *config.Config) { c.Export.Format = "xml" }, errors.ErrUnsupportedFormat},
		{"unknown sink", func(c *config.Config) { c.Export.Sink = "kafka" }, errors.ErrInvalidConfig},
		{"sqlite sink without path", func(c *config.Config) {
			c.Export.Sink = config.SinkSQLite
			c.Export.DBPath = ""
		}, errors.ErrInvalidConfig},
		{"probe weight", func(c *config.Config) {
			c.Probes = []config.ProbeConfig{{Name: "m", Kind: config.ProbeMemory, Weight: 11, Timeout: time.Second}}
		}, errors.ErrInvalidProbe},
		{"probe timeout", func(c *config.Config) {
			c.Probes = []config.ProbeConfig{{Name: "m", Kind: config.ProbeMemory, Weight: 1}}
		}, errors.ErrInvalidProbe},
		{"http probe without url", func(c *config.Config) {
			c.Probes = []config.ProbeConfig{{Name: "api", Kind: config.ProbeHTTP, Weight: 1, Timeout: time.Second}}
		}, errors.ErrInvalidProbe},
		{"unknown probe kind", func(c *config.Config) {
			c.Probes = []config.ProbeConfig{{Name: "x", Kind: "tcp", Weight: 1, Timeout: time.Second}}
		}, errors.ErrInvalidProbe},
		{"duplicate probe", func(c *config.Config) {
			p := config.ProbeConfig{Name: "m", Kind: config.ProbeMemory, Weight: 1, Timeout: time.Second}
			c.Probes = []config.ProbeConfig{p, p}
		}, errors.ErrProbeExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}

	def := config.DefaultConfig()
	assert.NoError(t, def.Validate())
}
