// Package catalog maps documentation versions to their index engines. Each
// version (dev, stable, v1.2, ...) owns an independent indexer.Engine, and
// the Catalog dispatches lookups by version name.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Catalog maps version names to dedicated indexer.Engine instances. The set
// of versions is fixed at construction.
type Catalog struct {
	engines        map[string]*indexer.Engine
	order          []string
	defaultVersion string
	mu             sync.RWMutex
	logger         *slog.Logger
}

// New creates one empty engine per version. defaultVersion must be one of
// versions.
func New(versions []string, defaultVersion string, m *metrics.Metrics) (*Catalog, error) {
	if len(versions) == 0 {
		return nil, errors.New("catalog needs at least one version")
	}
	c := &Catalog{
		engines:        make(map[string]*indexer.Engine, len(versions)),
		defaultVersion: defaultVersion,
		logger:         slog.Default().With("component", "catalog"),
	}
	for _, v := range versions {
		if v == "" {
			return nil, errors.New("version name must not be empty")
		}
		if _, dup := c.engines[v]; dup {
			return nil, fmt.Errorf("duplicate version %q", v)
		}
		c.engines[v] = indexer.NewEngine(v, m)
		c.order = append(c.order, v)
	}
	if _, ok := c.engines[defaultVersion]; !ok {
		return nil, fmt.Errorf("default version %q is not in %v", defaultVersion, versions)
	}
	c.logger.Info("catalog ready", "versions", c.order, "default", defaultVersion)
	return c, nil
}

// Get returns the engine for version; an empty version means the default.
func (c *Catalog) Get(version string) (*indexer.Engine, error) {
	if version == "" {
		version = c.defaultVersion
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	engine, ok := c.engines[version]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrVersionNotFound, http.StatusNotFound,
			"unknown version %q (available: %v)", version, c.order)
	}
	return engine, nil
}

// Default returns the engine of the default version.
func (c *Catalog) Default() *indexer.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engines[c.defaultVersion]
}

func (c *Catalog) DefaultVersion() string {
	return c.defaultVersion
}

// Versions returns version names in configuration order.
func (c *Catalog) Versions() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns a snapshot map of every engine.
func (c *Catalog) All() map[string]*indexer.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]*indexer.Engine, len(c.engines))
	for v, engine := range c.engines {
		result[v] = engine
	}
	return result
}

// OnReload registers h on every engine.
func (c *Catalog) OnReload(h indexer.ReloadHook) {
	for _, engine := range c.All() {
		engine.OnReload(h)
	}
}

// LoadAll performs the initial load of every version that has a source.
// Versions that fail stay empty; all failures are returned joined.
func (c *Catalog) LoadAll(ctx context.Context, sources map[string]string) error {
	var errs []error
	for _, v := range c.order {
		src := sources[v]
		if src == "" {
			c.logger.Info("no payload source configured, version starts empty", "version", v)
			continue
		}
		engine, _ := c.Get(v)
		if _, _, err := engine.ReloadFrom(ctx, src); err != nil {
			c.logger.Error("initial load failed", "version", v, "source", src, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartRefresh starts a refresh loop for each version with a source.
func (c *Catalog) StartRefresh(ctx context.Context, sources map[string]string, interval time.Duration) {
	for _, v := range c.order {
		if src := sources[v]; src != "" {
			engine, _ := c.Get(v)
			engine.StartRefreshLoop(ctx, src, interval)
		}
	}
}

// Wait blocks until every refresh loop has exited.
func (c *Catalog) Wait() {
	for _, engine := range c.All() {
		engine.Wait()
	}
}

// Ready reports whether every version serves a loaded snapshot.
func (c *Catalog) Ready() (bool, []string) {
	var pending []string
	for _, v := range c.order {
		engine, _ := c.Get(v)
		if engine.Snapshot().Generation == 0 {
			pending = append(pending, v)
		}
	}
	return len(pending) == 0, pending
}
