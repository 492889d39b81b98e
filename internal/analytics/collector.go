package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// Publisher is the producer side the collector writes to.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events and publishes them from a single goroutine so
// request handlers never block on the broker.
type Collector struct {
	producer Publisher
	eventCh  chan kafka.Event
	logger   *slog.Logger
	done     chan struct{}
	dropped  atomic.Int64

	// mu guards sends on eventCh against Close.
	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan kafka.Event, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// TrackSearch enqueues a search event keyed by version.
func (c *Collector) TrackSearch(event SearchEvent) {
	if event.Type == "" {
		event.Type = EventSearch
	}
	c.track(kafka.Event{Key: event.Version, Value: event})
}

// TrackReload enqueues a reload event keyed by version.
func (c *Collector) TrackReload(event ReloadEvent) {
	event.Type = EventReload
	c.track(kafka.Event{Key: event.Version, Value: event})
}

func (c *Collector) track(event kafka.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Dropped reports how many events were discarded, either because the buffer
// was full or because the collector was closed.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the publisher goroutine to
// flush what is buffered. Events tracked after Close are counted as dropped.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	close(c.eventCh)
	if !c.started {
		close(c.done)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event kafka.Event) {
	if err := c.producer.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish analytics event", "key", event.Key, "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}

// Direct returns a Publisher that hands events straight to agg. searchd uses
// it when Kafka is disabled, so a single node still reports analytics.
func Direct(agg *Aggregator) Publisher {
	return directPublisher{handle: HandleEvent(agg)}
}

type directPublisher struct {
	handle kafka.MessageHandler
}

func (d directPublisher) Publish(ctx context.Context, event kafka.Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return fmt.Errorf("encoding analytics event: %w", err)
	}
	return d.handle(ctx, []byte(event.Key), value)
}
