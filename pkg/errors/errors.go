package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeAuthTimeout       ErrorType = "auth_timeout"
	ErrorTypeIdentityNotFound  ErrorType = "identity_not_found"
	ErrorTypeStructureMismatch ErrorType = "structure_mismatch"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Sentinels for errors.Is checks. Every *Error of the matching type compares
// equal to these regardless of message.
var (
	ErrAuthTimeout       = &Error{Type: ErrorTypeAuthTimeout, Message: "login did not complete in time"}
	ErrIdentityNotFound  = &Error{Type: ErrorTypeIdentityNotFound, Message: "user identity element not found"}
	ErrStructureMismatch = &Error{Type: ErrorTypeStructureMismatch, Message: "page structure did not match"}
	ErrNotFound          = &Error{Type: ErrorTypeNotFound, Message: "resource not found"}
)

// Error carries a type, a message and an optional HTTP code or cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports type equality so wrapped instances match the sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a typed error
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// StructureMismatch is shorthand for the parser's most common failure
func StructureMismatch(format string, args ...interface{}) *Error {
	return New(ErrorTypeStructureMismatch, format, args...)
}

// FromStatus maps an HTTP status code to a typed error
func FromStatus(code int, url string) *Error {
	t := ErrorTypeUnknown
	switch {
	case code == 404 || code == 410:
		t = ErrorTypeNotFound
	case code == 429:
		t = ErrorTypeRateLimit
	case code >= 500:
		t = ErrorTypeServerError
	}
	return &Error{Type: t, Code: code, Message: url}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
