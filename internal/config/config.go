package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/pulse/internal/collector"
	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/events"
	"codeberg.org/mutker/pulse/internal/export"
	"codeberg.org/mutker/pulse/internal/health"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
	"codeberg.org/mutker/pulse/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "PULSE"
	DefaultLogLevel  = "info"

	maxMetricPoints = 1_000_000
)

type ProbeConfig struct {
	Name    string        `mapstructure:"name"`
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	Path    string        `mapstructure:"path"`
	Weight  int           `mapstructure:"weight"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ExportConfig struct {
	// Interval between scheduled exports. Zero disables scheduling.
	Interval  time.Duration `mapstructure:"interval"`
	Format    string        `mapstructure:"format"`
	Sink      string        `mapstructure:"sink"`
	DBPath    string        `mapstructure:"db_path"`
	Retention time.Duration `mapstructure:"retention"`
	BatchSize int           `mapstructure:"batch_size"`
}

type Config struct {
	ServiceName string `mapstructure:"service_name"`
	LogLevel    string `mapstructure:"log_level"`

	EnableResources bool `mapstructure:"enable_resources"`
	EnableHealth    bool `mapstructure:"enable_health"`
	EnableBusiness  bool `mapstructure:"enable_business"`
	EnableMetrics   bool `mapstructure:"enable_metrics"`
	EnableGPU       bool `mapstructure:"enable_gpu"`

	CollectionInterval time.Duration `mapstructure:"collection_interval"`
	SamplerInterval    time.Duration `mapstructure:"sampler_interval"`
	MaxMetricPoints    int           `mapstructure:"max_metric_points"`
	MaxEvents          int           `mapstructure:"max_events"`

	Probes []ProbeConfig `mapstructure:"probes"`
	Export ExportConfig  `mapstructure:"export"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:        "pulse",
		LogLevel:           DefaultLogLevel,
		EnableResources:    true,
		EnableHealth:       true,
		EnableBusiness:     true,
		EnableMetrics:      true,
		CollectionInterval: collector.DefaultInterval,
		SamplerInterval:    10 * time.Second,
		MaxMetricPoints:    metrics.DefaultConfig().MaxPoints,
		MaxEvents:          events.DefaultMaxEvents,
		Export: ExportConfig{
			Format:    export.JSON.String(),
			Sink:      SinkStdout,
			DBPath:    telemetry.DefaultConfig().DBPath,
			Retention: telemetry.DefaultConfig().Retention,
			BatchSize: telemetry.DefaultConfig().BatchSize,
		},
	}
}

// flagKeys maps flag names onto configuration keys.
var flagKeys = map[string]string{
	"service-name":        "service_name",
	"log-level":           "log_level",
	"collection-interval": "collection_interval",
	"sampler-interval":    "sampler_interval",
	"max-metric-points":   "max_metric_points",
	"max-events":          "max_events",
	"gpu":                 "enable_gpu",
	"export-interval":     "export.interval",
	"export-format":       "export.format",
	"export-sink":         "export.sink",
	"export-db":           "export.db_path",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	def := DefaultConfig()

	fs.String("service-name", def.ServiceName, "Service name attached to reports")
	fs.String("log-level", def.LogLevel, "Log level (debug, info, warning, error)")
	fs.Duration("collection-interval", def.CollectionInterval, "Interval between collection cycles, 0 for manual only")
	fs.Duration("sampler-interval", def.SamplerInterval, "Interval between resource samples")
	fs.Int("max-metric-points", def.MaxMetricPoints, "Points retained per metric")
	fs.Int("max-events", def.MaxEvents, "Business events retained")
	fs.Bool("gpu", def.EnableGPU, "Sample the first NVIDIA GPU through NVML")
	fs.Duration("export-interval", def.Export.Interval, "Interval between scheduled exports, 0 to disable")
	fs.String("export-format", def.Export.Format, "Export format (json, prometheus, csv, yaml)")
	fs.String("export-sink", def.Export.Sink, "Export sink (stdout, sqlite)")
	fs.String("export-db", def.Export.DBPath, "SQLite archive path for the sqlite sink")
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("service_name", def.ServiceName)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("enable_resources", def.EnableResources)
	v.SetDefault("enable_health", def.EnableHealth)
	v.SetDefault("enable_business", def.EnableBusiness)
	v.SetDefault("enable_metrics", def.EnableMetrics)
	v.SetDefault("enable_gpu", def.EnableGPU)
	v.SetDefault("collection_interval", def.CollectionInterval)
	v.SetDefault("sampler_interval", def.SamplerInterval)
	v.SetDefault("max_metric_points", def.MaxMetricPoints)
	v.SetDefault("max_events", def.MaxEvents)
	v.SetDefault("export.interval", def.Export.Interval)
	v.SetDefault("export.format", def.Export.Format)
	v.SetDefault("export.sink", def.Export.Sink)
	v.SetDefault("export.db_path", def.Export.DBPath)
	v.SetDefault("export.retention", def.Export.Retention)
	v.SetDefault("export.batch_size", def.Export.BatchSize)
}

// Load reads configuration from defaults, an optional config file,
// environment variables and flags, in increasing order of precedence.
// The config file is taken from WithConfigFile, then <PREFIX>_CONFIG, then
// pulse.{toml,yaml} in /etc/pulse, $HOME/.config/pulse or the working
// directory.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	configPath := o.configPath
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.WithData(errors.ErrReadConfig, struct {
				Path  string
				Error string
			}{
				Path:  configPath,
				Error: err.Error(),
			})
		}
	} else {
		v.SetConfigName("pulse")
		v.AddConfigPath("/etc/pulse")
		v.AddConfigPath("$HOME/.config/pulse")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	if o.flags != nil {
		var bindErr error
		o.flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	invalid := func(msg string) error {
		return errFactory.WithMessage(errors.ErrInvalidConfig, msg)
	}

	switch {
	case c.CollectionInterval < 0:
		return invalid("collection_interval must not be negative")
	case c.SamplerInterval <= 0:
		return invalid("sampler_interval must be positive")
	case c.MaxMetricPoints < 1 || c.MaxMetricPoints > maxMetricPoints:
		return invalid(fmt.Sprintf("max_metric_points must be between 1 and %d", maxMetricPoints))
	case c.MaxEvents < 1:
		return invalid("max_events must be positive")
	}

	seen := make(map[string]bool, len(c.Probes))
	for _, p := range c.Probes {
		if err := p.validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return errFactory.WithData(errors.ErrProbeExists, p.Name)
		}
		seen[p.Name] = true
	}

	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return err
	}

	switch {
	case c.Export.Interval < 0:
		return invalid("export.interval must not be negative")
	case c.Export.Sink != SinkStdout && c.Export.Sink != SinkSQLite:
		return invalid(fmt.Sprintf("export.sink %q is not one of stdout, sqlite", c.Export.Sink))
	case c.Export.Sink == SinkSQLite && c.Export.DBPath == "":
		return invalid("export.db_path is required for the sqlite sink")
	}

	return nil
}

func (p ProbeConfig) validate() error {
	errFactory := errors.New()

	invalid := func(msg string) error {
		return errFactory.WithMessage(errors.ErrInvalidProbe, fmt.Sprintf("probe %q: %s", p.Name, msg))
	}

	switch {
	case p.Name == "":
		return invalid("name is required")
	case p.Weight < health.MinWeight || p.Weight > health.MaxWeight:
		return invalid(fmt.Sprintf("weight must be between %d and %d", health.MinWeight, health.MaxWeight))
	case p.Timeout <= 0:
		return invalid("timeout must be positive")
	}

	switch p.Kind {
	case ProbeHTTP:
		if p.URL == "" {
			return invalid("url is required for http probes")
		}
	case ProbeSQLite:
		if p.Path == "" {
			return invalid("path is required for sqlite probes")
		}
	case ProbeMemory:
	default:
		return invalid(fmt.Sprintf("unknown kind %q", p.Kind))
	}

	return nil
}

func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{MaxPoints: c.MaxMetricPoints}
}

func (c *Config) EventsConfig() events.Config {
	return events.Config{MaxEvents: c.MaxEvents}
}

func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		Interval:        c.CollectionInterval,
		EnableResources: c.EnableResources,
		EnableHealth:    c.EnableHealth,
		EnableBusiness:  c.EnableBusiness,
		EnableMetrics:   c.EnableMetrics,
	}
}

func (c *Config) TelemetryConfig() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.DBPath = c.Export.DBPath
	cfg.Retention = c.Export.Retention
	cfg.BatchSize = c.Export.BatchSize

	return cfg
}

// ExportFormat returns the parsed export format. Validate has already
// rejected unknown names.
func (c *Config) ExportFormat() export.Format {
	f, _ := export.ParseFormat(c.Export.Format)
	return f
}
