package transport

import (
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/telemetry"
)

const (
	ErrNotConnected = telemetry.ErrSinkOffline
	ErrDialFailed   = errors.ErrorCode("transport_dial_failed")
	ErrSendFailed   = errors.ErrorCode("transport_send_failed")
	ErrReceive      = errors.ErrorCode("transport_receive_failed")
	ErrConnect      = errors.ErrorCode("transport_connect_failed")
	ErrSubscribe    = errors.ErrorCode("transport_subscribe_failed")
)
