package consumer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

const validPayload = `var documenterSearchIndex = {"docs":[{"location":"/a","page":"A","title":"Foo","text":"","category":"page"}]}`

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]string{"dev", "stable"}, "dev", nil)
	require.NoError(t, err)
	return cat
}

func encode(t *testing.T, event ingestion.ReloadEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestHandleReloadInlinePayload(t *testing.T) {
	t.Parallel()

	cat := newCatalog(t)
	handle := HandleReload(cat, nil)

	msg := encode(t, ingestion.ReloadEvent{Version: "stable", Payload: validPayload, Digest: indexer.Digest([]byte(validPayload))})
	require.NoError(t, handle(context.Background(), []byte("stable"), msg))

	stable, err := cat.Get("stable")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stable.Snapshot().Generation)
	assert.Equal(t, 1, stable.Snapshot().Index.Len())

	// redelivery of the same payload is a no-op
	require.NoError(t, handle(context.Background(), []byte("stable"), msg))
	assert.Equal(t, uint64(1), stable.Snapshot().Generation)

	dev, _ := cat.Get("dev")
	assert.Equal(t, uint64(0), dev.Snapshot().Generation)
}

func TestHandleReloadFromSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "search_index.js")
	require.NoError(t, os.WriteFile(path, []byte(validPayload), 0o600))

	cat := newCatalog(t)
	require.NoError(t, HandleReload(cat, map[string]string{"dev": path})(context.Background(), nil, encode(t, ingestion.ReloadEvent{Version: "dev", Source: path})))

	dev, _ := cat.Get("dev")
	assert.Equal(t, uint64(1), dev.Snapshot().Generation)
}

func TestHandleReloadSkipsPoisonMessages(t *testing.T) {
	t.Parallel()

	cat := newCatalog(t)
	handle := HandleReload(cat, nil)

	tests := []struct {
		name string
		msg  []byte
	}{
		{"bad json", []byte("{")},
		{"unknown version", encode(t, ingestion.ReloadEvent{Version: "v0", Payload: validPayload})},
		{"invalid payload", encode(t, ingestion.ReloadEvent{Version: "dev", Payload: `[{"page":"A"}]`})},
		{"empty event", encode(t, ingestion.ReloadEvent{Version: "dev"})},
		{"unconfigured source", encode(t, ingestion.ReloadEvent{Version: "dev", Source: "/etc/hostname"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, handle(context.Background(), nil, tt.msg))
		})
	}

	dev, _ := cat.Get("dev")
	assert.Equal(t, uint64(0), dev.Snapshot().Generation)
}

func TestHandleReloadReturnsFetchErrors(t *testing.T) {
	t.Parallel()

	cat := newCatalog(t)
	missing := filepath.Join(t.TempDir(), "missing.js")
	err := HandleReload(cat, map[string]string{"dev": missing})(context.Background(), nil, encode(t, ingestion.ReloadEvent{Version: "dev", Source: missing}))
	assert.Error(t, err)
}

func TestHandleReloadRejectsOtherVersionsSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "search_index.js")
	require.NoError(t, os.WriteFile(path, []byte(validPayload), 0o600))

	cat := newCatalog(t)
	handle := HandleReload(cat, map[string]string{"dev": path})
	require.NoError(t, handle(context.Background(), nil, encode(t, ingestion.ReloadEvent{Version: "stable", Source: path})))

	stable, _ := cat.Get("stable")
	assert.Equal(t, uint64(0), stable.Snapshot().Generation)
}
