package supervisor

import (
	"time"

	"codeberg.org/mutker/biolog/internal/errors"
)

const (
	defaultDrainInterval = 100 * time.Millisecond
	defaultJoinTimeout   = time.Second
)

type Config struct {
	DrainInterval       time.Duration
	JoinTimeout         time.Duration
	StopOnWorkerFailure bool
}

func DefaultConfig() Config {
	return Config{
		DrainInterval: defaultDrainInterval,
		JoinTimeout:   defaultJoinTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DrainInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "drain_interval must be positive")
	}
	if c.JoinTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "join_timeout must not be negative")
	}
	return nil
}
