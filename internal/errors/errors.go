package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Mate failure kind.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrDecode           ErrorCode = "DECODE"            // 422: model returned malformed JSON
	ErrExtraction       ErrorCode = "EXTRACTION"        // 422: no context extracted this cycle
	ErrEmptyResponse    ErrorCode = "EMPTY_RESPONSE"    // 502: model returned no text block
	ErrTransient        ErrorCode = "TRANSIENT"         // 503: network, auth, rate limit
	ErrRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED" // 503: bounded retry gave up
	ErrCapture          ErrorCode = "CAPTURE"           // 500
	ErrPersistence      ErrorCode = "PERSISTENCE"       // 500
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// MateError represents a structured error with code, status, and details.
type MateError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *MateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *MateError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MateError {
	return &MateError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(what string) *MateError {
	return &MateError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewDecode creates a 422 error when model output cannot be decoded.
func NewDecode(msg string, err error) *MateError {
	return &MateError{
		Code:    ErrDecode,
		Status:  422,
		Message: msg,
		Err:     err,
	}
}

// NewExtraction creates a 422 error when no context document was produced.
func NewExtraction(msg string, err error) *MateError {
	return &MateError{
		Code:    ErrExtraction,
		Status:  422,
		Message: msg,
		Err:     err,
	}
}

// NewEmptyResponse creates a 502 error when the model returned no text.
func NewEmptyResponse(model string) *MateError {
	return &MateError{
		Code:    ErrEmptyResponse,
		Status:  502,
		Message: fmt.Sprintf("model %s returned no text content", model),
		Details: map[string]any{"model": model},
	}
}

// NewTransient creates a 503 error for network, auth and rate-limit failures.
func NewTransient(msg string, err error) *MateError {
	return &MateError{
		Code:    ErrTransient,
		Status:  503,
		Message: msg,
		Err:     err,
	}
}

// NewRetriesExhausted creates a 503 error after the bounded retry gave up.
func NewRetriesExhausted(attempts int, last error) *MateError {
	msg := fmt.Sprintf("model call failed after %d attempts", attempts)
	if last != nil {
		msg = fmt.Sprintf("%s: %v", msg, last)
	}
	return &MateError{
		Code:    ErrRetriesExhausted,
		Status:  503,
		Message: msg,
		Details: map[string]any{"attempts": attempts},
		Err:     last,
	}
}

// NewCapture creates a 500 error when the display could not be captured.
func NewCapture(err error) *MateError {
	msg := "capture failed"
	if err != nil {
		msg = fmt.Sprintf("capture failed: %v", err)
	}
	return &MateError{
		Code:    ErrCapture,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// NewPersistence creates a 500 error when session state could not be written.
func NewPersistence(path string, err error) *MateError {
	msg := fmt.Sprintf("failed to persist %s", path)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MateError{
		Code:    ErrPersistence,
		Status:  500,
		Message: msg,
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MateError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MateError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a MateError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MateError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost MateError in err's chain,
// or ErrInternal for foreign errors. Returns "" for a nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var mErr *MateError
	if stderrors.As(err, &mErr) {
		return mErr.Code
	}
	return ErrInternal
}

// IsRetryable reports whether a caller implementing bounded retry should try again.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrTransient, ErrEmptyResponse, ErrInternal:
		return true
	}
	return false
}
