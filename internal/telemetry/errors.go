package telemetry

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")
	ErrEncodeRecord  = errors.ErrorCode("telemetry_encode_failed")
	ErrPublishFailed = errors.ErrorCode("telemetry_publish_failed")
	ErrNoSinks       = errors.ErrorCode("telemetry_no_sinks")
	// ErrSinkOffline marks a sink that is temporarily unreachable. The
	// publisher reports it once per outage.
	ErrSinkOffline   = errors.ErrorCode("telemetry_sink_offline")
)
