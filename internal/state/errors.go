package state

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrInvalidChannel   = errors.ErrInvalidChannel
	ErrInvalidDutyCycle = errors.ErrorCode("state_invalid_duty_cycle")
	ErrStoppedWithDuty  = errors.ErrorCode("state_stopped_with_duty")
	ErrInvalidSoC       = errors.ErrorCode("state_invalid_soc")
	ErrInvalidRamp      = errors.ErrorCode("state_invalid_ramp_counter")
)
