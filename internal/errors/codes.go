package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"

	// Health errors
	ErrProbeTimeout ErrorCode = "probe_timeout"
	ErrProbeFailed  ErrorCode = "probe_failed"
	ErrInvalidProbe ErrorCode = "invalid_probe"
	ErrProbeExists  ErrorCode = "probe_exists"

	// Sampling errors
	ErrSamplerUnavailable ErrorCode = "sampler_unavailable"

	// Export errors
	ErrUnsupportedFormat ErrorCode = "unsupported_export_format"
	ErrExportFailed      ErrorCode = "export_failed"

	// Collection errors
	ErrCollectionFailed ErrorCode = "collection_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrUnavailable:        "Service unavailable",
	ErrAlreadyRunning:     "Another instance is already running",
	ErrInvalidConfig:      "Invalid configuration",
	ErrReadConfig:         "Failed to read configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrInvalidInterval:    "Invalid interval value",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrOperationFailed:    "Operation failed",
	ErrTimeout:            "Operation timed out",
	ErrProbeTimeout:       "Health probe timed out",
	ErrProbeFailed:        "Health probe failed",
	ErrInvalidProbe:       "Invalid health probe",
	ErrProbeExists:        "Health probe already registered",
	ErrSamplerUnavailable: "Resource counter unavailable",
	ErrUnsupportedFormat:  "Unsupported export format",
	ErrExportFailed:       "Failed to export data",
	ErrCollectionFailed:   "Collection failed",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
