// Package consumer applies reload events from Kafka to the version catalog.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// ReloadConsumer wraps a Kafka consumer bound to the reload topic.
type ReloadConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *ReloadConsumer {
	return &ReloadConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (rc *ReloadConsumer) Start(ctx context.Context) error {
	rc.logger.Info("reload consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleReload returns a MessageHandler that rebuilds the event's version.
// Events that can never succeed (bad JSON, unknown version, invalid payload)
// are logged and acknowledged. Fetch failures are returned so the message is
// left uncommitted. A source event is only honoured when it names the
// version's entry in sources.
func HandleReload(cat *catalog.Catalog, sources map[string]string) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.ReloadEvent](value)
		if err != nil {
			logger.Error("failed to decode reload event", "error", err, "key", string(key))
			return nil
		}
		engine, err := cat.Get(event.Version)
		if err != nil {
			logger.Warn("reload for unknown version skipped", "version", event.Version)
			return nil
		}

		var snap *indexer.Snapshot
		switch {
		case event.Payload != "":
			if cur := engine.Snapshot(); event.Digest != "" && cur.Digest == event.Digest {
				logger.Debug("reload event matches live snapshot", "version", event.Version, "generation", cur.Generation)
				return nil
			}
			snap, err = engine.ReloadPayload([]byte(event.Payload))
		case event.Source != "":
			if event.Source != sources[event.Version] {
				logger.Warn("reload event source is not configured for version", "version", event.Version, "source", event.Source)
				return nil
			}
			snap, _, err = engine.ReloadFrom(ctx, event.Source)
		default:
			logger.Warn("reload event carries neither payload nor source", "version", event.Version)
			return nil
		}
		if err != nil {
			if errors.Is(err, apperrors.ErrValidation) {
				logger.Error("reload event rejected", "version", event.Version, "error", err)
				return nil
			}
			return fmt.Errorf("reloading %s: %w", event.Version, err)
		}

		logger.Info("reload event applied",
			"version", event.Version,
			"generation", snap.Generation,
			"published_at", event.PublishedAt,
		)
		return nil
	}
}
