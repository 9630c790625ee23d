package source_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/queue"
	"codeberg.org/mutker/biolog/internal/reading"
	"codeberg.org/mutker/biolog/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// countingSource emits one reading per poll until limit is reached, then
// returns end (nil means keep polling).
type countingSource struct {
	limit   int
	end     error
	openErr error
	panicAt int

	polls  atomic.Int64
	closes atomic.Int64
}

func (s *countingSource) Open(context.Context) error { return s.openErr }

func (s *countingSource) Poll(ctx context.Context, emit source.EmitFunc) error {
	n := int(s.polls.Add(1))
	if s.panicAt > 0 && n == s.panicAt {
		panic("sensor exploded")
	}
	if s.limit > 0 && n > s.limit {
		if s.end != nil {
			return s.end
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return emit(reading.New(reading.KindAttention, reading.Int(int64(n)), reading.FormatInteger))
}

func (s *countingSource) Close() error {
	s.closes.Add(1)
	return nil
}

func newQueue(t *testing.T, capacity int) *queue.Queue {
	t.Helper()
	q, err := queue.New(queue.FIFO, capacity)
	require.NoError(t, err)
	return q
}

func waitDone(t *testing.T, p source.Producer) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(waitFor):
		t.Fatalf("worker %s did not finish", p.Name())
	}
}

func TestWorkerExhaustedSourceEndsCleanly(t *testing.T) {
	q := newQueue(t, 0)
	src := &countingSource{limit: 5, end: io.EOF}
	w := source.NewWorker("counter", src, q)

	w.Start()
	waitDone(t, w)

	assert.NoError(t, w.Err())
	assert.False(t, w.IsRunning())
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, int64(1), src.closes.Load())
}

func TestWorkerStop(t *testing.T) {
	q := newQueue(t, 0)
	src := &countingSource{limit: 3}
	w := source.NewWorker("blocking", src, q)

	w.Start()
	require.Eventually(t, func() bool { return q.Len() == 3 }, waitFor, time.Millisecond)
	assert.True(t, w.IsRunning())

	w.Stop()
	waitDone(t, w)

	assert.NoError(t, w.Err())
	assert.Equal(t, int64(1), src.closes.Load())
}

func TestWorkerSourceFailure(t *testing.T) {
	q := newQueue(t, 0)
	src := &countingSource{limit: 2, end: fmt.Errorf("device unplugged")}
	w := source.NewWorker("flaky", src, q)

	w.Start()
	waitDone(t, w)

	require.Error(t, w.Err())
	assert.True(t, errors.HasCode(w.Err(), source.ErrSourceUnavailable))
	assert.Contains(t, w.Err().Error(), "device unplugged")
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(1), src.closes.Load())
}

func TestWorkerOpenFailure(t *testing.T) {
	src := &countingSource{openErr: fmt.Errorf("no such port")}
	w := source.NewWorker("absent", src, newQueue(t, 0))

	w.Start()
	waitDone(t, w)

	assert.True(t, errors.HasCode(w.Err(), source.ErrSourceUnavailable))
	assert.Zero(t, src.polls.Load())
	assert.Equal(t, int64(1), src.closes.Load(), "released even when open failed")
}

func TestWorkerRecoversPanic(t *testing.T) {
	q := newQueue(t, 0)
	src := &countingSource{panicAt: 2}
	w := source.NewWorker("panicky", src, q)

	w.Start()
	waitDone(t, w)

	assert.True(t, errors.HasCode(w.Err(), source.ErrWorkerPanic))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, int64(1), src.closes.Load())
}

func TestWorkerTreatsClosedQueueAsStop(t *testing.T) {
	q := newQueue(t, 0)
	q.Close()
	src := &countingSource{}
	w := source.NewWorker("late", src, q)

	w.Start()
	waitDone(t, w)

	assert.NoError(t, w.Err())
	assert.Equal(t, int64(1), src.polls.Load())
}

func TestWorkerStopUnblocksFullQueue(t *testing.T) {
	q := newQueue(t, 1)
	src := &countingSource{}
	w := source.NewWorker("busy", src, q)

	w.Start()
	require.Eventually(t, func() bool { return src.polls.Load() >= 2 }, waitFor, time.Millisecond)

	w.Stop()
	waitDone(t, w)

	assert.NoError(t, w.Err())
	assert.Equal(t, 1, q.Len())
}

func TestWorkersNoLossAcrossProducers(t *testing.T) {
	q := newQueue(t, 8)
	const producers, perProducer = 6, 200

	var workers []*source.Worker
	for i := 0; i < producers; i++ {
		w := source.NewWorker(fmt.Sprintf("w%d", i), &countingSource{limit: perProducer, end: io.EOF}, q)
		workers = append(workers, w)
		w.Start()
	}

	var (
		mu    sync.Mutex
		total int
	)
	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			n := len(q.PopAll())
			mu.Lock()
			total += n
			mu.Unlock()
			select {
			case <-stop:
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}()

	for _, w := range workers {
		waitDone(t, w)
		assert.NoError(t, w.Err())
	}
	close(stop)
	<-drained

	total += len(q.PopAll())
	assert.Equal(t, producers*perProducer, total)
}

func TestWorkerStartTwice(t *testing.T) {
	src := &countingSource{limit: 1, end: io.EOF}
	w := source.NewWorker("once", src, newQueue(t, 0))

	w.Start()
	w.Start()
	waitDone(t, w)

	assert.Equal(t, int64(2), src.polls.Load())
}
