package errors

// ErrorCode identifies a failure class. Codes are stable strings so they can
// be logged and counted.
type ErrorCode string

// Error is a coded error. Two Errors match under errors.Is when their codes
// are equal, regardless of message or data.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
	Is(target error) bool
}

// Factory creates coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
