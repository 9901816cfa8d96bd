package metrics

import "codeberg.org/mutker/pulse/internal/errors"

const (
	defaultMaxPoints = 1000
	maxMaxPoints     = 1_000_000
)

type Config struct {
	// MaxPoints caps the retained points per metric name.
	MaxPoints int
}

func DefaultConfig() Config {
	return Config{
		MaxPoints: defaultMaxPoints,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.MaxPoints < 1 || c.MaxPoints > maxMaxPoints {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "max_points",
			Value: c.MaxPoints,
		})
	}

	return nil
}
