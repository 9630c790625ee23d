package thinkgear

import "codeberg.org/mutker/biolog/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrOpenPort      = errors.ErrorCode("thinkgear_open_port_failed")
	ErrReadPort      = errors.ErrorCode("thinkgear_read_port_failed")
	ErrNotOpen       = errors.ErrorCode("thinkgear_not_open")
)
