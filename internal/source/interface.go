// Package source runs data sources on their own goroutines and feeds the
// readings they produce into the event queue.
package source

import (
	"context"

	"codeberg.org/mutker/biolog/internal/reading"
)

// EmitFunc hands one reading to the worker. A non-nil error means the
// reading was not accepted and the source should return it from Poll.
type EmitFunc func(reading.Reading) error

// Source is one kind of data source. Open acquires the underlying
// resource; Poll processes one unit of data and may block on I/O; Close
// releases the resource and must tolerate a failed or missing Open.
// Poll returns io.EOF when the source is exhausted.
type Source interface {
	Open(ctx context.Context) error
	Poll(ctx context.Context, emit EmitFunc) error
	Close() error
}

// Producer is what the supervisor sees of a running source.
type Producer interface {
	Name() string
	Start()
	Stop()
	IsRunning() bool
	Done() <-chan struct{}
	Err() error
}

// Pusher is the part of the event queue a worker writes to.
type Pusher interface {
	Push(ctx context.Context, r reading.Reading) error
}
