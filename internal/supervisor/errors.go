package supervisor

import "codeberg.org/mutker/biolog/internal/errors"

const (
	ErrInvalidConfig     = errors.ErrInvalidConfig
	ErrInvalidOperation  = errors.ErrInvalidOperation
	ErrInitFailed        = errors.ErrInitFailed
	ErrSinkWrite         = errors.ErrSinkWrite
	ErrWorkerJoinTimeout = errors.ErrWorkerJoinTimeout
)
