package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an application error
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeInvalidState     Code = "INVALID_STATE_TRANSITION"
	CodeConflict         Code = "CONFLICT"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Error is a coded application error
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// NotFound reports a missing resource, e.g. NotFound("inspection")
func NotFound(resource string) *Error {
	return New(CodeNotFound, resource+" not found")
}

func PermissionDenied(format string, args ...any) *Error {
	return New(CodePermissionDenied, "permission denied: "+fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...any) *Error {
	return New(CodeInvalidState, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

func RateLimited(message string) *Error {
	return New(CodeRateLimited, message)
}

func Internal(err error, message string) *Error {
	return Wrap(err, CodeInternal, message)
}

// CodeOf returns the code of the first coded error in the chain, or
// CodeInternal for anything unclassified
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to its response status
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodeInvalidState:
		return http.StatusBadRequest
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to callers. Internal errors
// are reduced to a generic text.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Message
	}
	return "An unexpected error occurred"
}
