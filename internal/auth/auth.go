// Package auth guards searchd's admin endpoints with API keys and applies a
// per-key rate limit.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

type contextKey struct{}

// Limits is the per-key rate limit. Limiter may be nil; DefaultLimit
// applies to keys without their own limit.
type Limits struct {
	Limiter      *middleware.Limiter
	DefaultLimit int
}

// Require rejects requests without a valid key. Keys are read from
// "Authorization: Bearer <key>" or X-API-Key. They are never taken from the
// query string, which ends up in access logs.
func Require(v apikey.Validator, limits Limits) func(http.Handler) http.Handler {
	base := slog.Default().With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="docsearch"`)
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			info, err := v.Validate(r.Context(), key)
			switch {
			case errors.Is(err, apikey.ErrInvalidKey):
				logger.FromContext(r.Context()).Warn("rejected api key", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			case errors.Is(err, apikey.ErrExpiredKey):
				writeError(w, http.StatusUnauthorized, "expired api key")
				return
			case err != nil:
				base.Error("api key validation failed", "error", err)
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}

			if limits.Limiter != nil {
				limit := info.RateLimit
				if limit <= 0 {
					limit = limits.DefaultLimit
				}
				if limit > 0 && !limits.Limiter.AllowLimit("key:"+info.ID, limit) {
					middleware.WriteRateLimited(w, limits.Limiter.Window())
					return
				}
			}

			ctx := context.WithValue(r.Context(), contextKey{}, info)
			logger.FromContext(ctx).Info("admin request", "key_id", info.ID, "key_name", info.Name, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyInfo returns the key that authenticated the request, if any.
func KeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(contextKey{}).(*apikey.KeyInfo)
	return info
}

func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
