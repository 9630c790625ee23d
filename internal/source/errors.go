package source

import "codeberg.org/mutker/biolog/internal/errors"

const (
	ErrSourceUnavailable = errors.ErrSourceUnavailable
	ErrWorkerPanic       = errors.ErrorCode("source_worker_panic")
)
