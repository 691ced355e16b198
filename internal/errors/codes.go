package errors

// Common error codes
const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrInvalidBackend  ErrorCode = "invalid_backend"

	// Lifecycle errors
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Application errors
	ErrInitApp        ErrorCode = "init_app_failed"
	ErrOpenBoard      ErrorCode = "open_board_failed"
	ErrInitTransport  ErrorCode = "init_transport_failed"
	ErrInitJournal    ErrorCode = "init_journal_failed"
	ErrResetOutputs   ErrorCode = "reset_outputs_failed"
	ErrInvalidChannel ErrorCode = "invalid_channel"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrAlreadyRunning:  "Another instance is already running",
	ErrInvalidConfig:   "Invalid configuration",
	ErrReadConfig:      "Failed to read config file",
	ErrBindFlags:       "Failed to bind flags",
	ErrInvalidLogLevel: "Invalid log level",
	ErrInvalidBackend:  "Invalid hardware backend",
	ErrShutdownFailed:  "Shutdown failed",
	ErrInitApp:         "Failed to initialize application",
	ErrOpenBoard:       "Failed to open hardware board",
	ErrInitTransport:   "Failed to initialize transport",
	ErrInitJournal:     "Failed to initialize journal",
	ErrResetOutputs:    "Failed to reset outputs",
	ErrInvalidChannel:  "Invalid channel",
	ErrTimeout:         "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
