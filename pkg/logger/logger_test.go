package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, "info", "json").Info("index reloaded", "version", "stable")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "index reloaded", rec["msg"])
	assert.Equal(t, "stable", rec["version"])

	buf.Reset()
	New(&buf, "info", "text").Info("index reloaded")
	assert.Contains(t, buf.String(), `msg="index reloaded"`)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestLevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, "warn", "text")
	l.Info("dropped")
	l.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestID(context.Background()))
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
}
