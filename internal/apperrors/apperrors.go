// Package apperrors carries an HTTP status alongside an error so services can
// decide how a failure is reported without knowing about the transport.
package apperrors

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    int
	Message string
	Err     error
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// BadRequest reports missing or malformed client input.
func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, nil)
}

// Unauthorized reports bad credentials or a missing identity.
func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message, nil)
}

// Conflict reports a uniqueness violation. The API answers these with 400.
func Conflict(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, message, err)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, nil)
}

// Internal wraps an unexpected collaborator failure. The underlying message is
// passed through to the caller.
func Internal(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "", err)
}

// Code returns the status carried by err, or 500 when err is not an AppError.
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
