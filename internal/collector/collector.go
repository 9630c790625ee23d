// Package collector drains the event queue, numbers readings and streams
// them to the log sink.
package collector

import (
	"time"

	"codeberg.org/mutker/biolog/internal/clock"
	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/logger"
	"codeberg.org/mutker/biolog/internal/metrics"
	"codeberg.org/mutker/biolog/internal/reading"
	"codeberg.org/mutker/biolog/internal/sink"
)

// Collector is the single consumer of the queue. It is not safe for
// concurrent use; only the supervisor's control loop calls Drain.
type Collector struct {
	queue       Queue
	sink        Sink
	cfg         Config
	clock       clock.Clock
	reporter    Reporter
	instruments *metrics.Instruments
	log         logger.Logger

	next    uint64
	written uint64
	pending []reading.Reading

	watched    map[reading.Kind]struct{}
	last       map[reading.Kind]float64
	lastReport time.Time
}

type Option func(*Collector)

func WithClock(c clock.Clock) Option {
	return func(col *Collector) { col.clock = c }
}

func WithReporter(r Reporter) Option {
	return func(col *Collector) { col.reporter = r }
}

func WithInstruments(in *metrics.Instruments) Option {
	return func(col *Collector) { col.instruments = in }
}

func WithLogger(l logger.Logger) Option {
	return func(col *Collector) { col.log = l }
}

func New(q Queue, s Sink, cfg Config, opts ...Option) *Collector {
	c := &Collector{
		queue:   q,
		sink:    s,
		cfg:     cfg,
		clock:   clock.Real(),
		log:     logger.Default(),
		watched: make(map[reading.Kind]struct{}, len(cfg.WatchedKinds)),
		last:    make(map[reading.Kind]float64, len(cfg.WatchedKinds)),
	}
	for _, k := range cfg.WatchedKinds {
		c.watched[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = NewLogReporter(c.log)
	}

	return c
}

// Drain writes every reading currently buffered and returns how many were
// written. A sink failure stops the batch; unwritten readings are kept and
// retried, unnumbered, on the next call.
func (c *Collector) Drain() (int, error) {
	batch := c.queue.PopAll()
	if len(c.pending) > 0 {
		batch = append(c.pending, batch...)
		c.pending = nil
	}
	if len(batch) == 0 {
		return 0, nil
	}

	updated := false
	for i, r := range batch {
		r = r.WithSeq(c.next)

		if err := c.sink.Write(r.Render() + sink.Separator); err != nil {
			c.pending = batch[i:]
			c.instruments.ObserveDrain(i)
			return i, c.sinkError(err)
		}

		c.next++
		c.written++
		c.instruments.ObserveReading(r)

		if c.observe(r) {
			updated = true
		}
	}

	c.instruments.ObserveDrain(len(batch))

	if updated {
		c.maybeReport()
	}

	return len(batch), nil
}

// LastSequence returns the index of the most recently written reading.
// ok is false until something has been written.
func (c *Collector) LastSequence() (seq uint64, ok bool) {
	if c.written == 0 {
		return 0, false
	}
	return c.next - 1, true
}

// Written returns how many readings have reached the sink.
func (c *Collector) Written() uint64 {
	return c.written
}

// Pending returns how many readings are held back after a sink failure.
func (c *Collector) Pending() int {
	return len(c.pending)
}

func (c *Collector) observe(r reading.Reading) bool {
	if !c.cfg.SummaryEnabled {
		return false
	}
	if _, ok := c.watched[r.Kind]; !ok {
		return false
	}

	v, ok := r.Value.Float64()
	if !ok {
		return false
	}
	c.last[r.Kind] = v

	return true
}

func (c *Collector) maybeReport() {
	now := c.clock.Now()
	if c.cfg.SummaryInterval > 0 && !c.lastReport.IsZero() &&
		now.Sub(c.lastReport) <= c.cfg.SummaryInterval {
		return
	}
	c.lastReport = now

	values := make(map[reading.Kind]float64, len(c.watched))
	for k := range c.watched {
		if v, ok := c.last[k]; ok {
			values[k] = v
		}
	}
	seq, _ := c.LastSequence()

	c.reporter.Report(&Summary{
		Timestamp:    now,
		LastSequence: seq,
		Values:       values,
	})
	c.instruments.SummaryEmitted()
}

// WriteFailure is attached to sink errors returned by Drain. LastSequence
// is only meaningful when Written is non-zero.
type WriteFailure struct {
	Written      uint64
	LastSequence uint64
}

func (c *Collector) sinkError(err error) error {
	seq, _ := c.LastSequence()

	c.log.Error().
		Err(err).
		Uint64("written", c.written).
		Uint64("last_sequence", seq).
		Msg("Failed to write reading to log sink")

	return errors.New().Wrap(ErrSinkWrite, err).WithData(WriteFailure{
		Written:      c.written,
		LastSequence: seq,
	})
}
