package source

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/queue"
	"codeberg.org/mutker/biolog/internal/reading"
)

// Worker drives a Source on its own goroutine until it is stopped, the
// source is exhausted, or the source fails.
type Worker struct {
	name        string
	src         Source
	queue       Pusher
	log         logger.Logger
	instruments *metrics.Instruments

	ctx    context.Context
	cancel context.CancelFunc

	started   atomic.Bool
	stopping  atomic.Bool
	running   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

type WorkerOption func(*Worker)

func WithLogger(l logger.Logger) WorkerOption {
	return func(w *Worker) { w.log = l }
}

func WithInstruments(in *metrics.Instruments) WorkerOption {
	return func(w *Worker) { w.instruments = in }
}

func NewWorker(name string, src Source, q Pusher, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		name:   name,
		src:    src,
		queue:  q,
		log:    logger.Default(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Worker) Name() string {
	return w.name
}

// Start launches the worker goroutine. Calls after the first are ignored.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.running.Store(true)
	go w.run()
}

// Stop asks the worker to finish. It does not wait; use Done for that.
func (w *Worker) Stop() {
	w.stopping.Store(true)
	w.cancel()
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Done is closed once the worker goroutine has exited and the source has
// been released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the failure that ended the worker, or nil for a clean exit.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.running.Store(false)
	defer w.release()
	defer func() {
		if p := recover(); p != nil {
			w.fail(errors.New().WithData(ErrWorkerPanic, fmt.Sprint(p)))
		}
	}()

	w.log.Debug().Str("worker", w.name).Msg("Starting source worker")

	if err := w.src.Open(w.ctx); err != nil {
		if !w.stopRequested() {
			w.fail(errors.New().Wrap(ErrSourceUnavailable, err))
		}
		return
	}

	for !w.stopping.Load() {
		err := w.src.Poll(w.ctx, w.emit)
		if err == nil {
			continue
		}

		switch {
		case w.stopRequested(), errors.HasCode(err, queue.ErrQueueClosed):
			w.log.Debug().Str("worker", w.name).Msg("Source worker stopping")
		case errors.Is(err, io.EOF):
			w.log.Debug().Str("worker", w.name).Msg("Source exhausted")
		default:
			w.fail(errors.New().Wrap(ErrSourceUnavailable, err))
		}
		return
	}
}

func (w *Worker) emit(r reading.Reading) error {
	return w.queue.Push(w.ctx, r)
}

func (w *Worker) stopRequested() bool {
	return w.stopping.Load() || w.ctx.Err() != nil
}

func (w *Worker) release() {
	w.closeOnce.Do(func() {
		if err := w.src.Close(); err != nil {
			w.log.Warn().Err(err).Str("worker", w.name).Msg("Failed to close source")
		}
	})
}

func (w *Worker) fail(err errors.Error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()

	w.instruments.WorkerFailed(w.name)
	w.log.ErrorWithCode(err).Str("worker", w.name).Msg("Source worker terminated")
}
