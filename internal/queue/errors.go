package queue

import "codeberg.org/mutker/biolog/internal/errors"

const (
	ErrQueueClosed       = errors.ErrQueueClosed
	ErrInvalidDiscipline = errors.ErrorCode("queue_invalid_discipline")
	ErrInvalidCapacity   = errors.ErrorCode("queue_invalid_capacity")
)

// ErrClosed is returned by Push once the queue has been closed.
var ErrClosed = errors.New().New(ErrQueueClosed)
