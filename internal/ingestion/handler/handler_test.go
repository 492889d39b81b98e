package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

const payload = `[
  {"location":"/a","page":"A","title":"Foo Bar","text":"","category":"page"},
  {"location":"/b","page":"B","title":"Baz","text":"Foo appears here","category":"section"}
]`

type capture struct {
	events []kafka.Event
}

func (c *capture) Publish(_ context.Context, e kafka.Event) error {
	c.events = append(c.events, e)
	return nil
}

func newHandler(t *testing.T, b Broadcaster) (*Handler, *catalog.Catalog) {
	t.Helper()
	return newHandlerWithSources(t, b, nil)
}

func newHandlerWithSources(t *testing.T, b Broadcaster, sources map[string]string) (*Handler, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.New([]string{"dev", "stable"}, "dev", nil)
	require.NoError(t, err)
	return New(cat, b, 1<<20, sources), cat
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search_index.js")
	require.NoError(t, os.WriteFile(path, []byte("var documenterSearchIndex = {\"docs\":"+payload+"}"), 0o600))
	return path
}

func post(h *Handler, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return rec
}

func TestReloadPayload(t *testing.T) {
	t.Parallel()

	h, cat := newHandler(t, nil)
	rec := post(h, "/api/v1/index/reload?version=stable", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestion.ReloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ingestion.ReloadResponse{
		Version: "stable", Generation: 1, Entries: 2, Terms: 5, Pages: 2, Status: "reloaded",
	}, resp)

	stable, _ := cat.Get("stable")
	assert.Equal(t, uint64(1), stable.Snapshot().Generation)
}

func TestReloadValidationFailureKeepsIndex(t *testing.T) {
	t.Parallel()

	h, cat := newHandler(t, nil)
	require.Equal(t, http.StatusOK, post(h, "/api/v1/index/reload", payload).Code)

	rec := post(h, "/api/v1/index/reload", `[{"location":"/x","title":"no page"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Fields, "docs[0].page")

	dev, _ := cat.Get("dev")
	assert.Equal(t, uint64(1), dev.Snapshot().Generation)
	assert.Equal(t, 2, dev.Snapshot().Index.Len())
}

func TestReloadErrors(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, nil)
	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"unknown version", "/api/v1/index/reload?version=v9", payload, http.StatusNotFound},
		{"empty body", "/api/v1/index/reload", "", http.StatusBadRequest},
		{"malformed", "/api/v1/index/reload", "{not json", http.StatusBadRequest},
		{"broadcast disabled", "/api/v1/index/reload?broadcast=true", payload, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, post(h, tt.target, tt.body).Code)
		})
	}
}

func TestReloadFromSource(t *testing.T) {
	t.Parallel()

	path := writeSource(t)
	h, _ := newHandlerWithSources(t, nil, map[string]string{"dev": path})
	first := post(h, "/api/v1/index/reload?source="+path, "")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := post(h, "/api/v1/index/reload?source="+path, "")
	require.Equal(t, http.StatusOK, second.Code)
	var resp ingestion.ReloadResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "unchanged", resp.Status)
	assert.Equal(t, uint64(1), resp.Generation)
}

func TestReloadFromConfiguredSourceWithEmptyBody(t *testing.T) {
	t.Parallel()

	h, cat := newHandlerWithSources(t, nil, map[string]string{"dev": writeSource(t)})
	rec := post(h, "/api/v1/index/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dev, _ := cat.Get("dev")
	assert.Equal(t, uint64(1), dev.Snapshot().Generation)
}

func TestReloadRejectsUnconfiguredSource(t *testing.T) {
	t.Parallel()

	path := writeSource(t)
	other := writeSource(t)
	sink := &capture{}
	h, cat := newHandlerWithSources(t, publisher.New(sink), map[string]string{"dev": path})

	tests := []struct {
		name   string
		target string
	}{
		{"other file", "/api/v1/index/reload?source=" + other},
		{"missing file", "/api/v1/index/reload?source=/nonexistent/search_index.js"},
		{"remote url", "/api/v1/index/reload?source=http://169.254.169.254/latest/meta-data"},
		{"another version's source", "/api/v1/index/reload?version=stable&source=" + path},
		{"version without source", "/api/v1/index/reload?version=stable"},
		{"broadcast", "/api/v1/index/reload?broadcast=true&source=" + other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	assert.Empty(t, sink.events)
	for _, v := range []string{"dev", "stable"} {
		engine, _ := cat.Get(v)
		assert.Equal(t, uint64(0), engine.Snapshot().Generation, v)
	}
}

func TestReloadBroadcast(t *testing.T) {
	t.Parallel()

	sink := &capture{}
	h, cat := newHandler(t, publisher.New(sink))

	rec := post(h, "/api/v1/index/reload?version=stable&broadcast=true", payload)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, sink.events, 1)
	assert.Equal(t, "stable", sink.events[0].Key)

	event := sink.events[0].Value.(*ingestion.ReloadEvent)
	assert.Equal(t, payload, event.Payload)
	assert.WithinDuration(t, time.Now(), event.PublishedAt, time.Minute)

	stable, _ := cat.Get("stable")
	assert.Equal(t, uint64(0), stable.Snapshot().Generation, "broadcast leaves local apply to the consumer")

	bad := post(h, "/api/v1/index/reload?broadcast=true", `[{"page":"A"}]`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Len(t, sink.events, 1)
}
