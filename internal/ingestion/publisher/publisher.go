// Package publisher announces documentation payload reloads on Kafka so every
// search node rebuilds the same version.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/payload"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// MaxInlinePayload is the largest payload embedded in a ReloadEvent. It stays
// under the broker's default 1MB message limit after JSON escaping.
const MaxInlinePayload = 512 << 10

// Producer is the Kafka side the publisher writes to.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer Producer
	logger   *slog.Logger
	now      func() time.Time
}

func New(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "reload-publisher"),
		now:      time.Now,
	}
}

// PublishPayload validates data and publishes it inline. Invalid payloads
// never reach the topic.
func (p *Publisher) PublishPayload(ctx context.Context, version string, data []byte) (*ingestion.ReloadEvent, error) {
	if version == "" {
		return nil, apperrors.InvalidArgument("version is required")
	}
	if len(data) > MaxInlinePayload {
		return nil, apperrors.Newf(apperrors.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge,
			"payload is %d bytes, inline limit is %d; publish a source instead", len(data), MaxInlinePayload)
	}
	if _, err := payload.Decode(data); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	event := &ingestion.ReloadEvent{
		Version:     version,
		Payload:     string(data),
		Digest:      hex.EncodeToString(sum[:]),
		PublishedAt: p.now().UTC(),
	}
	return event, p.publish(ctx, event)
}

// PublishSource asks nodes to fetch the payload from src themselves.
func (p *Publisher) PublishSource(ctx context.Context, version, src string) (*ingestion.ReloadEvent, error) {
	if version == "" {
		return nil, apperrors.InvalidArgument("version is required")
	}
	if src == "" {
		return nil, apperrors.InvalidArgument("source is required")
	}
	event := &ingestion.ReloadEvent{
		Version:     version,
		Source:      src,
		PublishedAt: p.now().UTC(),
	}
	return event, p.publish(ctx, event)
}

func (p *Publisher) publish(ctx context.Context, event *ingestion.ReloadEvent) error {
	if err := p.producer.Publish(ctx, kafka.Event{Key: event.Version, Value: event}); err != nil {
		return fmt.Errorf("publishing reload for %s: %w", event.Version, err)
	}
	p.logger.Info("reload published",
		"version", event.Version,
		"inline_bytes", len(event.Payload),
		"source", event.Source,
	)
	return nil
}
