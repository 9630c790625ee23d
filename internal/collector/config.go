package collector

import (
	"time"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/reading"
)

const defaultSummaryInterval = time.Second

type Config struct {
	SummaryEnabled  bool
	SummaryInterval time.Duration // 0 reports on every drain with an update
	WatchedKinds    []reading.Kind
}

func DefaultConfig() Config {
	return Config{
		SummaryEnabled:  true,
		SummaryInterval: defaultSummaryInterval,
		WatchedKinds:    []reading.Kind{reading.KindPoorSignal, reading.KindSCL},
	}
}

func (c Config) Validate() error {
	if c.SummaryInterval < 0 {
		return errors.New().WithData(ErrInvalidInterval, c.SummaryInterval.String())
	}
	return nil
}
