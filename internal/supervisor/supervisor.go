// Package supervisor owns the lifecycle of one collection session: it
// starts the source workers, drives the collector, and shuts everything
// down in order.
package supervisor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/biolog/internal/collector"
	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/queue"
	"codeberg.org/mutker/biolog/internal/source"
	"github.com/looplab/fsm"
)

// Lifecycle states.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateClosed   = "closed"
)

const (
	eventStart = "start"
	eventStop  = "stop"
	eventClose = "close"
	eventAbort = "abort"
)

type Supervisor struct {
	cfg       Config
	queue     *queue.Queue
	open      OpenFunc
	producers []source.Producer

	collectorCfg  collector.Config
	collectorOpts []collector.Option
	log           logger.Logger
	instruments   *metrics.Instruments

	fsm       *fsm.FSM
	sink      Sink
	collector *collector.Collector
	exits     chan source.Producer

	mu       sync.Mutex
	loopDone chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	shutdownOnce sync.Once
	shutdownErr  error
	fatal        error
}

type Option func(*Supervisor)

func WithCollector(cfg collector.Config, opts ...collector.Option) Option {
	return func(s *Supervisor) {
		s.collectorCfg = cfg
		s.collectorOpts = opts
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

func WithInstruments(in *metrics.Instruments) Option {
	return func(s *Supervisor) { s.instruments = in }
}

func New(cfg Config, q *queue.Queue, open OpenFunc, producers []source.Producer, opts ...Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(ErrInvalidConfig, err)
	}

	s := &Supervisor{
		cfg:          cfg,
		queue:        q,
		open:         open,
		producers:    producers,
		collectorCfg: collector.DefaultConfig(),
		log:          logger.Default(),
		exits:        make(chan source.Producer, len(producers)),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateRunning},
			{Name: eventStop, Src: []string{StateRunning}, Dst: StateStopping},
			{Name: eventClose, Src: []string{StateStopping}, Dst: StateClosed},
			{Name: eventAbort, Src: []string{StateIdle}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.log.Debug().
					Str("from", e.Src).
					Str("to", e.Dst).
					Msg("Supervisor state changed")
			},
		},
	)

	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() string {
	return s.fsm.Current()
}

// Start opens the sink and starts every producer.
func (s *Supervisor) Start() error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fsm.Can(eventStart) {
		return errFactory.WithData(ErrInvalidOperation, "start from "+s.fsm.Current())
	}

	out, err := s.open()
	if err != nil {
		return errFactory.Wrap(ErrInitFailed, err)
	}
	s.sink = out

	opts := append([]collector.Option{
		collector.WithLogger(s.log),
		collector.WithInstruments(s.instruments),
	}, s.collectorOpts...)
	s.collector = collector.New(s.queue, out, s.collectorCfg, opts...)

	for _, p := range s.producers {
		p.Start()
		go func(p source.Producer) {
			<-p.Done()
			s.exits <- p
		}(p)
	}

	if err := s.fsm.Event(context.Background(), eventStart); err != nil {
		return errFactory.Wrap(ErrInvalidOperation, err)
	}

	s.log.Info().
		Int("workers", len(s.producers)).
		Str("discipline", string(s.queue.Discipline())).
		Int("capacity", s.queue.Capacity()).
		Msg("Collection started")

	return nil
}

// Run drains the queue every drain interval until ctx is cancelled, every
// producer has exited, Shutdown is called, or a fatal error occurs, then
// shuts down. It returns the fatal error, if any, or the shutdown result.
// Calling Run after Shutdown returns the shutdown result.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.fsm.Is(StateStopping) || s.fsm.Is(StateClosed) {
		s.mu.Unlock()
		return s.Shutdown()
	}
	if !s.fsm.Is(StateRunning) || s.loopDone != nil {
		state := s.fsm.Current()
		s.mu.Unlock()
		return errors.New().WithData(ErrInvalidOperation, "run from "+state)
	}
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	s.fatal = s.loop(ctx)
	close(s.loopDone)

	return s.Shutdown()
}

func (s *Supervisor) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	remaining := len(s.producers)
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("Context cancelled, stopping collection")
			return nil
		case <-s.stop:
			return nil
		case p := <-s.exits:
			remaining--
			if err := p.Err(); err != nil && s.cfg.StopOnWorkerFailure {
				s.log.Warn().Str("worker", p.Name()).Msg("Source worker failed, stopping collection")
				return err
			}
			if remaining == 0 {
				s.log.Info().Msg("All source workers exited")
				return nil
			}
		case <-ticker.C:
		}

		if _, err := s.collector.Drain(); err != nil {
			return err
		}
	}
}

// Shutdown stops the producers, joins them, performs a final drain and
// closes the sink and the queue. Only the first call has any effect; later
// calls return its result.
func (s *Supervisor) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.stopOnce.Do(func() { close(s.stop) })

		s.mu.Lock()
		if s.fsm.Is(StateIdle) {
			_ = s.fsm.Event(context.Background(), eventAbort)
			s.mu.Unlock()
			s.queue.Close()
			return
		}
		_ = s.fsm.Event(context.Background(), eventStop)
		done := s.loopDone
		s.mu.Unlock()

		if done != nil {
			<-done
		}

		s.shutdownErr = s.shutdown()
	})

	return s.shutdownErr
}

func (s *Supervisor) shutdown() error {
	errFactory := errors.New()

	s.join()

	result := s.fatal
	if _, err := s.collector.Drain(); err != nil && result == nil {
		result = err
	}
	if err := s.sink.Close(); err != nil {
		s.log.Error().Err(err).Msg("Failed to close log sink")
		if result == nil {
			result = errFactory.Wrap(ErrSinkWrite, err)
		}
	}
	s.queue.Close()

	_ = s.fsm.Event(context.Background(), eventClose)

	seq, ok := s.collector.LastSequence()
	level := s.log.Info
	if result != nil {
		level = s.log.Warn
	}
	event := level().Uint64("written", s.collector.Written())
	if ok {
		event = event.Uint64("last_sequence", seq)
	}
	if p, ok := s.sink.(interface{ Path() string }); ok {
		event = event.Str("output", p.Path())
	}
	event.Msg("Collection stopped")

	return result
}

func (s *Supervisor) join() {
	for _, p := range s.producers {
		p.Stop()
	}

	for _, p := range s.producers {
		timer := time.NewTimer(s.cfg.JoinTimeout)
		select {
		case <-p.Done():
		case <-timer.C:
			err := errors.New().WithData(ErrWorkerJoinTimeout, p.Name())
			s.log.ErrorWithCode(err).Str("worker", p.Name()).Msg("Source worker did not stop in time")
			s.instruments.JoinTimedOut(p.Name())
		}
		timer.Stop()
	}
}

// LastSequence returns the index of the last reading written to the sink.
// Call it after Run has returned.
func (s *Supervisor) LastSequence() (uint64, bool) {
	s.mu.Lock()
	c := s.collector
	s.mu.Unlock()

	if c == nil {
		return 0, false
	}
	return c.LastSequence()
}
