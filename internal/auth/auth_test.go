package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

const adminKey = "admin-key-0123456789"

type brokenValidator struct{}

func (brokenValidator) Validate(context.Context, string) (*apikey.KeyInfo, error) {
	return nil, errors.New("connection refused")
}

type expiredValidator struct{}

func (expiredValidator) Validate(context.Context, string) (*apikey.KeyInfo, error) {
	return nil, apikey.ErrExpiredKey
}

func guarded(v apikey.Validator, limits Limits) (http.Handler, *string) {
	var seen string
	h := Require(v, limits)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info := KeyInfo(r.Context()); info != nil {
			seen = info.Name
		}
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestRequire(t *testing.T) {
	t.Parallel()

	static := apikey.NewStatic([]config.StaticKey{{Name: "ops", Key: adminKey}})
	tests := []struct {
		name      string
		validator apikey.Validator
		header    string
		value     string
		status    int
	}{
		{"bearer", static, "Authorization", "Bearer " + adminKey, http.StatusOK},
		{"bearer lowercase scheme", static, "Authorization", "bearer " + adminKey, http.StatusOK},
		{"x-api-key", static, "X-API-Key", adminKey, http.StatusOK},
		{"missing", static, "", "", http.StatusUnauthorized},
		{"basic scheme", static, "Authorization", "Basic " + adminKey, http.StatusUnauthorized},
		{"wrong key", static, "X-API-Key", "nope", http.StatusUnauthorized},
		{"expired", expiredValidator{}, "X-API-Key", adminKey, http.StatusUnauthorized},
		{"backend down", brokenValidator{}, "X-API-Key", adminKey, http.StatusInternalServerError},
		{"no keys configured", apikey.NewStatic(nil), "X-API-Key", adminKey, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, seen := guarded(tt.validator, Limits{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reload", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops", *seen)
			} else {
				assert.Empty(t, *seen)
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequireIgnoresQueryKey(t *testing.T) {
	t.Parallel()

	h, _ := guarded(apikey.NewStatic([]config.StaticKey{{Key: adminKey}}), Limits{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate?api_key="+adminKey, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestRequireRateLimitsPerKey(t *testing.T) {
	t.Parallel()

	static := apikey.NewStatic([]config.StaticKey{
		{Name: "tight", Key: "tight-key-0123456789", RateLimit: 1},
		{Name: "default", Key: "default-key-0123456789"},
	})
	h, _ := guarded(static, Limits{Limiter: middleware.NewLimiter(100, time.Minute), DefaultLimit: 2})

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reload", nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("tight-key-0123456789"))
	assert.Equal(t, http.StatusTooManyRequests, do("tight-key-0123456789"))

	assert.Equal(t, http.StatusOK, do("default-key-0123456789"))
	assert.Equal(t, http.StatusOK, do("default-key-0123456789"))
	assert.Equal(t, http.StatusTooManyRequests, do("default-key-0123456789"))
}
