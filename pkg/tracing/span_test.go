package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

func TestSpanTree(t *testing.T) {
	t.Parallel()

	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	childCtx, child := StartChildSpan(ctx, "execute")
	child.SetAttr("results", 3)
	child.End()
	root.End()
	first := root.Duration
	root.End()

	assert.Same(t, child, SpanFromContext(childCtx))
	require.Len(t, root.Children(), 1)
	assert.Equal(t, "trace-1", child.TraceID)
	v, ok := child.Attr("results")
	require.True(t, ok)
	assert.EqualValues(t, 3, v)
	assert.GreaterOrEqual(t, root.Duration, child.Duration)
	assert.Equal(t, first, root.Duration)

	_, orphan := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, orphan.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLogWritesEverySpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := StartSpan(context.Background(), "GET /api/v1/search", "trace-2")
	_, child := StartChildSpan(ctx, "search.execute")
	child.SetError(errors.New("deadline exceeded"))
	child.SetError(nil)
	child.End()
	root.End()
	root.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "depth=0")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], `error="deadline exceeded"`)
}

func TestMiddlewareUsesRequestID(t *testing.T) {
	t.Parallel()

	var span *Span
	h := middleware.RequestID(Middleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span = SpanFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, span)
	assert.Equal(t, "req-42", span.TraceID)
	status, _ := span.Attr("status")
	assert.EqualValues(t, http.StatusNotFound, status)
}

func TestSampled(t *testing.T) {
	t.Parallel()

	assert.True(t, sampled(1))
	assert.False(t, sampled(0))
	assert.False(t, sampled(-1))
}
