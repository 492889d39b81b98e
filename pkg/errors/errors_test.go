package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"validation", fmt.Errorf("loading payload: %w", ErrValidation), http.StatusBadRequest},
		{"invalid argument", InvalidArgument("limit must be positive, got %d", 0), http.StatusBadRequest},
		{"version not found", fmt.Errorf("lookup: %w", ErrVersionNotFound), http.StatusNotFound},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"too large sentinel", Newf(ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "%d bytes", 11), http.StatusRequestEntityTooLarge},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestInvalidArgumentUnwraps(t *testing.T) {
	t.Parallel()

	err := InvalidArgument("limit must be positive, got %d", -3)

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "invalid argument: limit must be positive, got -3", err.Error())
}

func TestPublicMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"app error message", InvalidArgument("limit must be positive, got %d", 0), "limit must be positive, got 0"},
		{"not found keeps detail", fmt.Errorf("%w: v9", ErrVersionNotFound), "documentation version not found: v9"},
		{"deadline", fmt.Errorf("search: %w after 2s", context.DeadlineExceeded), "operation timed out"},
		{"internal hidden", errors.New("dial tcp 10.0.0.5:6379: refused"), "search failed"},
		{"max bytes", &http.MaxBytesError{Limit: 1}, "payload too large"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PublicMessage(tt.err, "search failed"))
		})
	}
}
