package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/biolog/internal/errors"
	"codeberg.org/mutker/biolog/internal/queue"
	"codeberg.org/mutker/biolog/internal/reading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intReading(kind reading.Kind, v int64) reading.Reading {
	return reading.New(kind, reading.Int(v), reading.FormatInteger)
}

func values(batch []reading.Reading) []int64 {
	out := make([]int64, 0, len(batch))
	for _, r := range batch {
		v, _ := r.Value.Int64()
		out = append(out, v)
	}
	return out
}

func TestNewValidation(t *testing.T) {
	_, err := queue.New("stack", 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, queue.ErrInvalidDiscipline))

	_, err = queue.New(queue.FIFO, -1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, queue.ErrInvalidCapacity))
}

func TestParseDiscipline(t *testing.T) {
	d, err := queue.ParseDiscipline("LIFO")
	require.NoError(t, err)
	assert.Equal(t, queue.LIFO, d)

	d, err = queue.ParseDiscipline("")
	require.NoError(t, err)
	assert.Equal(t, queue.FIFO, d)

	_, err = queue.ParseDiscipline("random")
	assert.Error(t, err)
}

func TestPopAllEmpty(t *testing.T) {
	q, err := queue.New(queue.FIFO, 0)
	require.NoError(t, err)

	batch := q.PopAll()
	assert.NotNil(t, batch)
	assert.Empty(t, batch)
}

func TestOrderFIFO(t *testing.T) {
	q, err := queue.New(queue.FIFO, 0)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, intReading(1, int64(i))))
	}

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, values(q.PopAll()))
	assert.Equal(t, 0, q.Len())
}

func TestOrderLIFO(t *testing.T) {
	q, err := queue.New(queue.LIFO, 0)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, intReading(1, int64(i))))
	}

	assert.Equal(t, []int64{4, 3, 2, 1, 0}, values(q.PopAll()))
}

func TestConcurrentProducersNoLossNoDuplication(t *testing.T) {
	const producers = 8
	const perProducer = 500

	q, err := queue.New(queue.FIFO, 16)
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Push(ctx, intReading(reading.Kind(p), int64(p*perProducer+i))))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	seen := make(map[int64]int)
	lastPerProducer := make(map[reading.Kind]int64)
	collect := func() {
		for _, r := range q.PopAll() {
			v, _ := r.Value.Int64()
			seen[v]++
			if last, ok := lastPerProducer[r.Kind]; ok {
				assert.Greater(t, v, last, "per-producer order must hold in FIFO mode")
			}
			lastPerProducer[r.Kind] = v
		}
	}

	for {
		select {
		case <-done:
			collect()
			assert.Len(t, seen, producers*perProducer)
			for v, n := range seen {
				assert.Equal(t, 1, n, "value %d seen %d times", v, n)
			}
			return
		default:
			collect()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestBoundedPushBlocksUntilDrained(t *testing.T) {
	q, err := queue.New(queue.FIFO, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, intReading(1, 1)))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, intReading(1, 2))
	}()

	select {
	case <-pushed:
		t.Fatal("push into a full queue returned before space was freed")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, []int64{1}, values(q.PopAll()))

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked push did not resume after drain")
	}

	assert.Equal(t, []int64{2}, values(q.PopAll()))
}

func TestBoundedLIFOReordersWithoutDropping(t *testing.T) {
	q, err := queue.New(queue.LIFO, 1)
	require.NoError(t, err)

	ctx := context.Background()
	pushed := make(chan error, 1)
	go func() {
		if err := q.Push(ctx, intReading(1, 1)); err != nil {
			pushed <- err
			return
		}
		pushed <- q.Push(ctx, intReading(1, 2))
	}()

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)

	var got []int64
	require.Eventually(t, func() bool {
		got = append(got, values(q.PopAll())...)
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, <-pushed)
	assert.ElementsMatch(t, []int64{1, 2}, got)
}

func TestCloseUnblocksPush(t *testing.T) {
	q, err := queue.New(queue.FIFO, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, intReading(1, 1)))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, intReading(1, 2))
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-pushed:
		assert.ErrorIs(t, err, queue.ErrClosed)
		assert.True(t, errors.HasCode(err, queue.ErrQueueClosed))
	case <-time.After(time.Second):
		t.Fatal("close did not unblock a pending push")
	}

	assert.True(t, q.IsClosed())
	assert.Equal(t, []int64{1}, values(q.PopAll()), "buffered readings stay poppable after close")
	assert.ErrorIs(t, q.Push(ctx, intReading(1, 3)), queue.ErrClosed)

	q.Close()
}

func TestPushHonoursContext(t *testing.T) {
	q, err := queue.New(queue.FIFO, 1)
	require.NoError(t, err)

	require.NoError(t, q.Push(context.Background(), intReading(1, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, q.Push(ctx, intReading(1, 2)), context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestAccessors(t *testing.T) {
	q, err := queue.New(queue.LIFO, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, q.Capacity())
	assert.Equal(t, queue.LIFO, q.Discipline())
}
