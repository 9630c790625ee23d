package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Pipeline errors
	ErrQueueClosed       ErrorCode = "queue_closed"
	ErrSourceUnavailable ErrorCode = "source_unavailable"
	ErrSinkWrite         ErrorCode = "sink_write_failed"
	ErrWorkerJoinTimeout ErrorCode = "worker_join_timeout"

	// Lifecycle errors
	ErrInitFailed       ErrorCode = "initialization_failed"
	ErrShutdownFailed   ErrorCode = "shutdown_failed"
	ErrInvalidOperation ErrorCode = "invalid_operation"
	ErrTimeout          ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read config file",
	ErrBindFlags:         "Failed to bind flags",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrQueueClosed:       "Event queue is closed",
	ErrSourceUnavailable: "Source unavailable",
	ErrSinkWrite:         "Failed to write log sink",
	ErrWorkerJoinTimeout: "Worker did not terminate in time",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrInvalidOperation:  "Invalid operation",
	ErrTimeout:           "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
