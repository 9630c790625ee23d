package sink

import "codeberg.org/mutker/biolog/internal/errors"

const (
	ErrSinkWrite       = errors.ErrSinkWrite
	ErrSinkClosed      = errors.ErrorCode("sink_closed")
	ErrInvalidCodec    = errors.ErrorCode("sink_invalid_codec")
	ErrInvalidDocument = errors.ErrorCode("sink_invalid_document")
)
