// Package errors defines the sentinel errors shared by docsearch packages and
// their mapping onto HTTP responses.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrVersionNotFound = errors.New("documentation version not found")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
	ErrPayloadTooLarge = errors.New("payload too large")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidArgument builds a 400 AppError wrapping ErrInvalidArgument.
func InvalidArgument(format string, args ...any) *AppError {
	return Newf(ErrInvalidArgument, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, ErrPayloadTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text shown to API clients for err. Client errors keep
// their detail; server errors are replaced by fallback so internals do not
// leak.
func PublicMessage(err error, fallback string) string {
	status := HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
		return fallback
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	case status == http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge.Error()
	}
	return err.Error()
}
