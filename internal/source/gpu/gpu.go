// Package gpu samples GPU temperature, fan speed and power limit at a
// fixed interval.
package gpu

import (
	"context"
	"time"

	"codeberg.org/mutker/biolog/internal/clock"
	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/reading"
	"codeberg.org/mutker/biolog/internal/source"
)

const defaultInterval = time.Second

type Config struct {
	Index    int
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: defaultInterval}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Index < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "gpu index must not be negative")
	}
	if c.Interval <= 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "gpu interval must be positive")
	}
	return nil
}

type Source struct {
	cfg   Config
	lib   Library
	clock clock.Clock
	log   logger.Logger

	device Device
	timer  *time.Timer
	polled bool
}

type Option func(*Source)

func WithLibrary(lib Library) Option {
	return func(s *Source) { s.lib = lib }
}

func WithClock(c clock.Clock) Option {
	return func(s *Source) { s.clock = c }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Source) { s.log = l }
}

func New(cfg Config, opts ...Option) *Source {
	s := &Source{
		cfg:   cfg,
		lib:   NVML(),
		clock: clock.Real(),
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Open(context.Context) error {
	if err := s.lib.Initialize(); err != nil {
		return err
	}

	device, err := s.lib.Device(s.cfg.Index)
	if err != nil {
		return err
	}
	s.device = device

	if name, err := device.Name(); err == nil {
		s.log.Info().Str("gpu", name).Int("index", s.cfg.Index).Msg("Detected GPU")
	} else {
		s.log.Warn().Err(err).Msg("Failed to get GPU name")
	}

	return nil
}

// Poll samples the device once per interval. The first sample is taken
// immediately.
func (s *Source) Poll(ctx context.Context, emit source.EmitFunc) error {
	if s.device == nil {
		return errors.New().New(ErrNotInitialized)
	}

	if s.polled {
		if s.timer == nil {
			s.timer = time.NewTimer(s.cfg.Interval)
		} else {
			s.timer.Reset(s.cfg.Interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.timer.C:
		}
	}
	s.polled = true

	return s.sample(emit)
}

func (s *Source) sample(emit source.EmitFunc) error {
	now := s.clock.Now()

	temp, err := s.device.Temperature()
	if err != nil {
		return err
	}
	if err := emit(reading.NewAt(now, reading.KindGPUTemperature, reading.Int(int64(temp)), reading.FormatInteger)); err != nil {
		return err
	}

	speeds, err := s.device.FanSpeeds()
	if err != nil {
		return err
	}
	if len(speeds) > 0 {
		if err := emit(reading.NewAt(now, reading.KindGPUFanSpeed, reading.Int(int64(average(speeds))), reading.FormatInteger)); err != nil {
			return err
		}
	}

	limit, err := s.device.PowerLimit()
	if err != nil {
		return err
	}
	return emit(reading.NewAt(now, reading.KindGPUPowerLimit, reading.Int(int64(limit)), reading.FormatInteger))
}

func (s *Source) Close() error {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.device = nil
	return s.lib.Shutdown()
}

func average(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum / len(values)
}
