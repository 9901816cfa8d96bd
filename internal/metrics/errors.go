package metrics

import "codeberg.org/mutker/pulse/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Export Errors
	ErrUnsupportedFormat = errors.ErrUnsupportedFormat
	ErrExportFailed      = errors.ErrExportFailed
)
