package telemetry

import (
	"time"

	"codeberg.org/mutker/chargectl/internal/errors"
)

// DefaultInterval is the telemetry cadence.
const DefaultInterval = time.Second

type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New().WithData(ErrInvalidConfig, c.Interval.String())
	}
	return nil
}
