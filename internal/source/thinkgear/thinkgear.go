// Package thinkgear reads EEG data from a ThinkGear headset over a serial
// port.
package thinkgear

import (
	"context"
	"io"
	"sync"
	"time"

	"codeberg.org/mutker/biolog/internal/clock"
	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/source"
	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 57600
	DefaultReadTimeout = 500 * time.Millisecond
	DefaultOpenRetries = 3

	readBufferSize = 512
)

type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	OpenRetries int
}

func DefaultConfig() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
		OpenRetries: DefaultOpenRetries,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Port == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "thinkgear port must be set")
	}
	if c.BaudRate <= 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "thinkgear baud rate must be positive")
	}
	if c.ReadTimeout < 0 || c.OpenRetries < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "thinkgear timeouts and retries must not be negative")
	}
	return nil
}

// Opener opens the device stream described by cfg.
type Opener func(cfg Config) (io.ReadCloser, error)

type Source struct {
	cfg     Config
	open    Opener
	backoff func() backoff.BackOff
	clock   clock.Clock
	log     logger.Logger

	port      io.ReadCloser
	parser    Parser
	buf       []byte
	closeOnce sync.Once
}

type Option func(*Source)

// WithOpener replaces the serial port opener.
func WithOpener(open Opener) Option {
	return func(s *Source) { s.open = open }
}

// WithBackOff replaces the retry policy used while opening the port.
func WithBackOff(b func() backoff.BackOff) Option {
	return func(s *Source) { s.backoff = b }
}

func WithClock(c clock.Clock) Option {
	return func(s *Source) { s.clock = c }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Source) { s.log = l }
}

func New(cfg Config, opts ...Option) *Source {
	s := &Source{
		cfg:     cfg,
		open:    OpenSerial,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		clock:   clock.Real(),
		log:     logger.Default(),
		buf:     make([]byte, readBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSerial opens cfg.Port at cfg.BaudRate, 8N1.
func OpenSerial(cfg Config) (io.ReadCloser, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	return port, nil
}

// Open opens the port, retrying up to OpenRetries times.
func (s *Source) Open(ctx context.Context) error {
	errFactory := errors.New()

	b := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), uint64(s.cfg.OpenRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		port, err := s.open(s.cfg)
		if err != nil {
			s.log.Debug().Err(err).
				Str("port", s.cfg.Port).
				Int("attempt", attempt).
				Msg("Failed to open ThinkGear port")
			return err
		}
		s.port = port
		return nil
	}, b)
	if err != nil {
		return errFactory.Wrap(ErrOpenPort, err)
	}

	s.log.Info().
		Str("port", s.cfg.Port).
		Int("baud_rate", s.cfg.BaudRate).
		Msg("ThinkGear port opened")

	return nil
}

// Poll performs one read and emits readings for every packet it
// completes. A read timeout with no data is not an error.
func (s *Source) Poll(_ context.Context, emit source.EmitFunc) error {
	if s.port == nil {
		return errors.New().New(ErrNotOpen)
	}

	n, err := s.port.Read(s.buf)
	if n > 0 {
		now := s.clock.Now()
		for _, pkt := range s.parser.Feed(s.buf[:n]) {
			for _, r := range Readings(pkt, now) {
				if emitErr := emit(r); emitErr != nil {
					return emitErr
				}
			}
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return errors.New().Wrap(ErrReadPort, err)
	}

	return nil
}

func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.port == nil {
			return
		}
		packets, dropped := s.parser.Stats()
		s.log.Debug().
			Int("packets", packets).
			Int("dropped", dropped).
			Msg("Closing ThinkGear port")
		err = s.port.Close()
	})
	return err
}
