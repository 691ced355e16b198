package fan

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrReadTemperature = errors.ErrorCode("fan_read_temperature_failed")
	ErrSetFanSpeed     = errors.ErrorCode("fan_set_speed_failed")
)
