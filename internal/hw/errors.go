package hw

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrUnknownProbe      = errors.ErrorCode("hw_unknown_probe")
	ErrUnknownPin        = errors.ErrorCode("hw_unknown_pin")
	ErrInvalidDuty       = errors.ErrorCode("hw_invalid_duty")
	ErrReadTemperature   = errors.ErrorCode("hw_read_temperature_failed")
	ErrParseTemperature  = errors.ErrorCode("hw_parse_temperature_failed")
	ErrOpenI2C           = errors.ErrorCode("hw_open_i2c_failed")
	ErrI2CTransfer       = errors.ErrorCode("hw_i2c_transfer_failed")
	ErrSelectMuxChannel  = errors.ErrorCode("hw_select_mux_channel_failed")
	ErrConfigureMonitor  = errors.ErrorCode("hw_configure_monitor_failed")
	ErrReadMonitor       = errors.ErrorCode("hw_read_monitor_failed")
	ErrExportGPIO        = errors.ErrorCode("hw_export_gpio_failed")
	ErrWriteGPIO         = errors.ErrorCode("hw_write_gpio_failed")
	ErrUnsupportedOnHost = errors.ErrorCode("hw_unsupported_platform")
	ErrSimulatedFault    = errors.ErrorCode("hw_simulated_fault")
)
