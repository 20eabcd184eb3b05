package errors

import (
	stderrors "errors"
	"fmt"
)

// SenseError is the structured error type for SynapSense.
// It carries a stable code plus context for logging and CLI presentation.
type SenseError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SenseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SenseError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *SenseError) Is(target error) bool {
	if t, ok := target.(*SenseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SenseError) WithDetail(key, value string) *SenseError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SenseError) WithSuggestion(suggestion string) *SenseError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SenseError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SenseError {
	return &SenseError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a SenseError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *SenseError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a SenseError from an existing error.
// The error's message becomes the SenseError message.
func Wrap(code string, err error) *SenseError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SenseError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *SenseError {
	return New(ErrCodeReadFailed, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *SenseError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SenseError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SenseError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var se *SenseError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SenseError
	if stderrors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first SenseError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SenseError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from the first SenseError in the chain.
func GetCategory(err error) Category {
	var se *SenseError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ""
}

// HasCode reports whether any SenseError in the chain carries code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &SenseError{Code: code})
}
