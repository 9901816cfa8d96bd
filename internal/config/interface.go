package config

import "github.com/spf13/pflag"

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	flags      *pflag.FlagSet
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "PULSE"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithFlags binds flags registered by RegisterFlags. Flags that were set
// explicitly override file and environment values.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *options) error {
		o.flags = fs
		return nil
	}
}

// Probe kinds accepted in configuration.
const (
	ProbeHTTP   = "http"
	ProbeMemory = "memory"
	ProbeSQLite = "sqlite"
)

// Export sinks accepted in configuration.
const (
	SinkStdout = "stdout"
	SinkSQLite = "sqlite"
)
