package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of session error.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates the server rejected the session (401/403 or a redirect).
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeUserNotFound indicates the identity endpoint answered 404.
	ErrCodeUserNotFound ErrorCode = "user_not_found"
	// ErrCodeNetwork indicates a transport failure or timeout; the only transient kind.
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeHTTP indicates any other non-2xx response.
	ErrCodeHTTP ErrorCode = "http"
	// ErrCodeCircuitOpen is synthesized locally when a guard suppresses the identity fetch.
	ErrCodeCircuitOpen ErrorCode = "circuit_open"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an unexpected local failure.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Status is the HTTP status that produced the error, zero for local errors
	Status int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
// A bare &AppError{Code: c} can therefore be used as a sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// Unauthorized creates an Unauthorized error for the given HTTP status.
func Unauthorized(status int) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: "UNAUTHORIZED",
		Status:  status,
	}
}

// UserNotFound creates a UserNotFound error.
func UserNotFound() *AppError {
	return &AppError{
		Code:    ErrCodeUserNotFound,
		Message: "USER_NOT_FOUND",
		Status:  404,
	}
}

// Network wraps a transport failure.
func Network(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeNetwork,
		Message: "NETWORK_ERROR",
		Cause:   cause,
	}
}

// HTTPStatus creates a generic HTTP error for an unexpected status.
func HTTPStatus(status int) *AppError {
	return &AppError{
		Code:    ErrCodeHTTP,
		Message: fmt.Sprintf("HTTP_%d", status),
		Status:  status,
	}
}

// CircuitOpen creates the synthetic error reported while a guard suppresses fetching.
func CircuitOpen(reason string) *AppError {
	return &AppError{
		Code:    ErrCodeCircuitOpen,
		Message: "CIRCUIT_BREAKER_OPEN",
		Cause:   errors.New(reason),
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsUserNotFound checks if an error is a UserNotFound error.
func IsUserNotFound(err error) bool {
	return isCode(err, ErrCodeUserNotFound)
}

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool {
	return isCode(err, ErrCodeNetwork)
}

// IsHTTP checks if an error is a generic HTTP error.
func IsHTTP(err error) bool {
	return isCode(err, ErrCodeHTTP)
}

// IsCircuitOpen checks if an error is the synthetic CircuitOpen error.
func IsCircuitOpen(err error) bool {
	return isCode(err, ErrCodeCircuitOpen)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// KindOf returns the ErrorCode from an error. Errors that are not AppErrors
// are reported as internal; nil yields the empty code.
func KindOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// StatusOf returns the HTTP status carried by an AppError, or zero.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}
