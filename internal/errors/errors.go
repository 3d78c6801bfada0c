// Package errors provides the error taxonomy used across the replication
// engine: a typed code plus a wrapped cause, so callers can classify a
// failure without string matching.
package errors

import "fmt"

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// General
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Persistence (Ledger / FilterIndex store)
	ErrDatabase        ErrorCode = "DATABASE_ERROR"
	ErrMigration       ErrorCode = "MIGRATION_FAILED"
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_FILTER_INDEX_VERSION"

	// NodeAdapter / transport
	ErrAdapterUnavailable   ErrorCode = "ADAPTER_UNAVAILABLE"
	ErrAdapterRejected      ErrorCode = "ADAPTER_REJECTED"
	ErrAdapterTransport     ErrorCode = "ADAPTER_TRANSPORT_ERROR"
	ErrAdapterTimeout       ErrorCode = "ADAPTER_TIMEOUT_ERROR"
	ErrAdapterAuthFailed    ErrorCode = "ADAPTER_AUTH_FAILED"
	ErrAdapterQuotaExceeded ErrorCode = "ADAPTER_QUOTA_EXCEEDED"

	// Job
	ErrJobAborted ErrorCode = "JOB_ABORTED"

	// Config
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// AppError is an error with a stable machine-readable code.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with no wrapped cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to an existing error.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is reports whether err is an *AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			appErr = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return appErr != nil && appErr.Code == code
}
