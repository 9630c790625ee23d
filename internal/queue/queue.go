// Package queue implements the event queue shared by source workers and
// the collector.
package queue

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/reading"
)

// Discipline is the order in which PopAll returns buffered readings.
type Discipline string

const (
	FIFO Discipline = "fifo"
	LIFO Discipline = "lifo"
)

// ParseDiscipline accepts "fifo" or "lifo" in any case.
func ParseDiscipline(s string) (Discipline, error) {
	switch d := Discipline(strings.ToLower(s)); d {
	case FIFO, LIFO:
		return d, nil
	case "":
		return FIFO, nil
	default:
		return "", errors.New().WithData(ErrInvalidDiscipline, s)
	}
}

// Queue is a thread-safe buffer of readings. When bounded, Push blocks
// while the queue is full; readings are never dropped.
type Queue struct {
	mu         sync.Mutex
	items      []reading.Reading
	discipline Discipline
	capacity   int

	// slots holds one token per buffered reading when bounded.
	slots     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// New returns a queue with the given discipline. A capacity of zero means
// unbounded.
func New(discipline Discipline, capacity int) (*Queue, error) {
	errFactory := errors.New()

	if discipline != FIFO && discipline != LIFO {
		return nil, errFactory.WithData(ErrInvalidDiscipline, discipline)
	}
	if capacity < 0 {
		return nil, errFactory.WithData(ErrInvalidCapacity, capacity)
	}

	q := &Queue{
		discipline: discipline,
		capacity:   capacity,
		closed:     make(chan struct{}),
	}
	if capacity > 0 {
		q.slots = make(chan struct{}, capacity)
		q.items = make([]reading.Reading, 0, capacity)
	}

	return q, nil
}

// Push appends r. It blocks while a bounded queue is full and returns
// ErrClosed once the queue is closed, or the context error if ctx ends
// first.
func (q *Queue) Push(ctx context.Context, r reading.Reading) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	if q.slots != nil {
		select {
		case q.slots <- struct{}{}:
		case <-q.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.closed:
		if q.slots != nil {
			<-q.slots
		}
		return ErrClosed
	default:
	}

	q.items = append(q.items, r)

	return nil
}

// PopAll removes and returns every buffered reading in the configured
// order. It never blocks and returns an empty slice when nothing is
// buffered.
func (q *Queue) PopAll() []reading.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return []reading.Reading{}
	}

	batch := make([]reading.Reading, n)
	if q.discipline == LIFO {
		for i, r := range q.items {
			batch[n-1-i] = r
		}
	} else {
		copy(batch, q.items)
	}

	clear(q.items)
	q.items = q.items[:0]

	if q.slots != nil {
		for i := 0; i < n; i++ {
			<-q.slots
		}
	}

	return batch
}

// Close marks the queue closed. Buffered readings stay poppable.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Capacity() int {
	return q.capacity
}

func (q *Queue) Discipline() Discipline {
	return q.discipline
}
