package collector

import "codeberg.org/mutker/biolog/internal/errors"

const (
	ErrSinkWrite       = errors.ErrSinkWrite
	ErrInvalidInterval = errors.ErrInvalidInterval
)
