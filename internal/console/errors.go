package console

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrInitConsole = errors.ErrorCode("console_init_failed")
)
