package command

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrFrameSize    = errors.ErrorCode("command_invalid_frame_size")
	ErrSetRelay     = errors.ErrorCode("command_set_relay_failed")
	ErrSourceClosed = errors.ErrorCode("command_source_closed")
)
