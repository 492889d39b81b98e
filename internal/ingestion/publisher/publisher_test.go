package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, event kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

const samplePayload = `[{"location":"/a","page":"A","title":"Foo"}]`

func newPublisher(p Producer) *Publisher {
	pub := New(p)
	pub.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return pub
}

func TestPublishPayload(t *testing.T) {
	t.Parallel()

	prod := &fakeProducer{}
	event, err := newPublisher(prod).PublishPayload(context.Background(), "stable", []byte(samplePayload))
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(samplePayload))
	assert.Equal(t, hex.EncodeToString(sum[:]), event.Digest)
	assert.Equal(t, samplePayload, event.Payload)
	require.Len(t, prod.events, 1)
	assert.Equal(t, "stable", prod.events[0].Key)
	assert.Same(t, event, prod.events[0].Value.(*ingestion.ReloadEvent))
	assert.Equal(t, 2026, event.PublishedAt.Year())
}

func TestPublishPayloadRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		data    string
		status  int
	}{
		{"missing version", "", samplePayload, http.StatusBadRequest},
		{"invalid payload", "stable", `[{"page":"A"}]`, http.StatusBadRequest},
		{"too large", "stable", "[" + strings.Repeat(" ", MaxInlinePayload) + "]", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prod := &fakeProducer{}
			_, err := newPublisher(prod).PublishPayload(context.Background(), tt.version, []byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, tt.status, apperrors.HTTPStatusCode(err))
			assert.Empty(t, prod.events)
		})
	}
}

func TestPublishSource(t *testing.T) {
	t.Parallel()

	prod := &fakeProducer{}
	pub := newPublisher(prod)
	event, err := pub.PublishSource(context.Background(), "dev", "https://docs.example.org/dev/search_index.js")
	require.NoError(t, err)
	assert.Empty(t, event.Payload)
	assert.Equal(t, "https://docs.example.org/dev/search_index.js", event.Source)

	_, err = pub.PublishSource(context.Background(), "dev", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	prod.err = errors.New("broker down")
	_, err = pub.PublishSource(context.Background(), "dev", "/srv/dev.js")
	assert.ErrorContains(t, err, "broker down")
}
