// Package indexer owns the live index of one documentation version and
// replaces it atomically when a new payload arrives.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/payload"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Snapshot is one published, immutable index.
type Snapshot struct {
	Version    string
	Generation uint64
	LoadedAt   time.Time
	// Digest is the SHA-256 of the payload the snapshot was built from, or
	// empty when it was built from records directly.
	Digest string
	Index  *index.Index
}

// ReloadHook runs after a new snapshot is published.
type ReloadHook func(prev, next *Snapshot)

// Engine publishes snapshots for one version. Readers call Snapshot and
// never block; reloads are serialised and swap the pointer only after the
// new index is fully built.
type Engine struct {
	version string
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	hooksMu sync.RWMutex
	hooks   []ReloadHook
	metrics *metrics.Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewEngine returns an engine serving an empty generation-0 snapshot. m may
// be nil.
func NewEngine(version string, m *metrics.Metrics) *Engine {
	e := &Engine{
		version: version,
		metrics: m,
		logger:  slog.Default().With("component", "indexer", "version", version),
	}
	e.current.Store(&Snapshot{
		Version:  version,
		LoadedAt: time.Now(),
		Index:    index.Build(store.Empty()),
	})
	return e
}

func (e *Engine) Version() string {
	return e.version
}

// Snapshot returns the live snapshot. It is never nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// OnReload registers a hook invoked after every successful reload.
func (e *Engine) OnReload(h ReloadHook) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, h)
}

// Reload validates raws, builds a new index and publishes it. On error the
// live snapshot is unchanged.
func (e *Engine) Reload(raws []ingestion.RawEntry) (*Snapshot, error) {
	return e.reload("", func() (*store.Store, error) {
		return store.Load(raws)
	})
}

// ReloadPayload decodes a payload and publishes its index.
func (e *Engine) ReloadPayload(data []byte) (*Snapshot, error) {
	return e.reload(Digest(data), func() (*store.Store, error) {
		raws, err := payload.Decode(data)
		if err != nil {
			return nil, err
		}
		return store.Load(raws)
	})
}

// ReloadFrom fetches src and reloads when its digest differs from the live
// snapshot. The boolean reports whether a new snapshot was published.
func (e *Engine) ReloadFrom(ctx context.Context, src string) (*Snapshot, bool, error) {
	data, err := payload.Fetch(ctx, src)
	if err != nil {
		e.observeReload("fetch_error")
		return nil, false, fmt.Errorf("fetching payload for %s: %w", e.version, err)
	}
	if cur := e.Snapshot(); cur.Digest != "" && cur.Digest == Digest(data) {
		e.logger.Debug("payload unchanged, skipping reload", "source", src, "generation", cur.Generation)
		return cur, false, nil
	}
	snap, err := e.ReloadPayload(data)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (e *Engine) reload(digest string, load func() (*store.Store, error)) (*Snapshot, error) {
	e.mu.Lock()
	start := time.Now()
	st, err := load()
	if err != nil {
		e.mu.Unlock()
		e.observeReload("rejected")
		e.logger.Warn("reload rejected, keeping current index",
			"error", err,
			"generation", e.Snapshot().Generation,
		)
		return nil, fmt.Errorf("reloading %s: %w", e.version, err)
	}

	idx := index.Build(st)
	prev := e.current.Load()
	next := &Snapshot{
		Version:    e.version,
		Generation: prev.Generation + 1,
		LoadedAt:   time.Now(),
		Digest:     digest,
		Index:      idx,
	}
	e.current.Store(next)
	e.mu.Unlock()

	took := time.Since(start)
	stats := idx.Stats()
	e.logger.Info("index reloaded",
		"generation", next.Generation,
		"entries", stats.Entries,
		"terms", stats.Terms,
		"pages", stats.Pages,
		"took", took,
	)
	if e.metrics != nil {
		e.metrics.IndexReloadsTotal.WithLabelValues(e.version, "success").Inc()
		e.metrics.IndexBuildDuration.WithLabelValues(e.version).Observe(took.Seconds())
		e.metrics.IndexedEntries.WithLabelValues(e.version).Set(float64(stats.Entries))
		e.metrics.IndexedTerms.WithLabelValues(e.version).Set(float64(stats.Terms))
		e.metrics.IndexGeneration.WithLabelValues(e.version).Set(float64(next.Generation))
	}

	e.hooksMu.RLock()
	hooks := make([]ReloadHook, len(e.hooks))
	copy(hooks, e.hooks)
	e.hooksMu.RUnlock()
	for _, h := range hooks {
		h(prev, next)
	}
	return next, nil
}

// StartRefreshLoop re-fetches src every interval until ctx is cancelled.
// Failures are logged and the live snapshot is kept.
func (e *Engine) StartRefreshLoop(ctx context.Context, src string, interval time.Duration) {
	if interval <= 0 || src == "" {
		return
	}
	ticker := time.NewTicker(interval)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("refresh loop stopping")
				return
			case <-ticker.C:
				if _, changed, err := e.ReloadFrom(ctx, src); err != nil {
					e.logger.Error("periodic refresh failed", "source", src, "error", err)
				} else if changed {
					e.logger.Info("periodic refresh picked up new payload", "source", src)
				}
			}
		}
	}()
}

// Wait blocks until refresh loops have exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) observeReload(status string) {
	if e.metrics != nil {
		e.metrics.IndexReloadsTotal.WithLabelValues(e.version, status).Inc()
	}
}

// Digest returns the hex SHA-256 of a payload.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
