package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeValidation indicates the request was malformed
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeEmbedding indicates the embedding model failed
	ErrorTypeEmbedding ErrorType = "EMBEDDING"

	// ErrorTypeIndex indicates the remote vector index rejected or failed a call
	ErrorTypeIndex ErrorType = "INDEX"
)

// Error is a classified gateway error
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	// StatusCode is the upstream HTTP status when one is known, zero otherwise
	StatusCode int
	Err        error
}

// Error returns the message, falling back to the wrapped error
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil && e.Err.Error() != e.Message:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Type)
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error
func Validation(op, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Op: op, Message: message}
}

// Validationf creates a validation error with a formatted message
func Validationf(op, format string, args ...interface{}) *Error {
	return Validation(op, fmt.Sprintf(format, args...))
}

// Embedding creates an embedding error wrapping err
func Embedding(op, message string, err error) *Error {
	return &Error{Type: ErrorTypeEmbedding, Op: op, Message: message, Err: err}
}

// Index creates an index error wrapping err
func Index(op, message string, err error) *Error {
	return &Error{Type: ErrorTypeIndex, Op: op, Message: message, Err: err}
}

// IndexWithStatus creates an index error that remembers the backend's HTTP status
func IndexWithStatus(op, message string, statusCode int, err error) *Error {
	e := Index(op, message, err)
	e.StatusCode = statusCode
	return e
}

func typeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

// IsValidation returns true if err is or wraps a validation error
func IsValidation(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsEmbedding returns true if err is or wraps an embedding error
func IsEmbedding(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeEmbedding
}

// IsIndex returns true if err is or wraps an index error
func IsIndex(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeIndex
}

// HTTPStatus maps an error to the status code the gateway responds with.
// Validation errors are 400; everything else, classified or not, is 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// UpstreamStatus returns the backend HTTP status carried by err, or zero
func UpstreamStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
