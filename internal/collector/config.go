package collector

import (
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
)

const DefaultInterval = time.Minute

type Config struct {
	// Interval between automatic collections. Zero disables the timer and
	// leaves only on-demand collection.
	Interval time.Duration

	EnableResources bool
	EnableHealth    bool
	EnableBusiness  bool
	EnableMetrics   bool
}

func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		EnableResources: true,
		EnableHealth:    true,
		EnableBusiness:  true,
		EnableMetrics:   true,
	}
}

func (c Config) Validate() error {
	if c.Interval < 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, c.Interval.String())
	}

	return nil
}
