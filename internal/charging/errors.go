package charging

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrReadSensor    = errors.ErrorCode("charging_read_sensor_failed")
	ErrWriteActuator = errors.ErrorCode("charging_write_actuator_failed")
	ErrCommitState   = errors.ErrorCode("charging_commit_state_failed")
	ErrNoChannels    = errors.ErrorCode("charging_no_channels")
)
