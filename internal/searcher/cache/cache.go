// Package cache memoizes search responses in Redis. Keys carry the index
// version and generation, so a reload makes every older entry unreachable.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const (
	keyPrefix   = "search:"
	breakerName = "redis-cache"
)

// Kinds of cached response.
const (
	KindEntries = "entries"
	KindPages   = "pages"
)

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable request.
type Key struct {
	Kind       string
	Version    string
	Generation uint64
	Plan       *parser.QueryPlan
	Limit      int
}

// String renders the backend key: search:<version>:<generation>:<kind>:<hash>.
func (k Key) String() string {
	terms := append([]string(nil), k.Plan.Terms...)
	if !k.Plan.Prefix {
		// term order only matters for the expanded last term
		sort.Strings(terms)
	}
	raw := fmt.Sprintf("%s|prefix=%t|limit=%d", strings.Join(terms, ","), k.Plan.Prefix, k.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%d:%s:%x", keyPrefix, k.Version, k.Generation, k.Kind, hash[:16])
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	skipped atomic.Int64
}

// Stats reports counters since start.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Skipped int64   `json:"skipped"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
	Breaker string  `json:"breaker"`
}

// New wraps backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(resilience.StateClosed))
		cfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	c.breaker = resilience.NewCircuitBreaker(breakerName, cfg)
	return c
}

// Search returns the cached entry result for key or computes and stores it.
// The bool reports a cache hit.
func (c *QueryCache) Search(ctx context.Context, key Key, compute func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error) {
	key.Kind = KindEntries
	return getOrCompute(ctx, c, key, compute)
}

// Pages is Search for page-grouped results.
func (c *QueryCache) Pages(ctx context.Context, key Key, compute func() (*executor.PageResult, error)) (*executor.PageResult, bool, error) {
	key.Kind = KindPages
	return getOrCompute(ctx, c, key, compute)
}

func getOrCompute[T any](ctx context.Context, c *QueryCache, key Key, compute func() (*T, error)) (*T, bool, error) {
	k := key.String()
	if v, ok := get[T](ctx, c, k); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(k, func() (interface{}, error) {
		if v, ok := get[T](ctx, c, k); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, k, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*T), false, nil
}

func get[T any](ctx context.Context, c *QueryCache, key string) (*T, bool) {
	var v T
	missed := false
	err := c.breaker.Execute(func() error {
		err := c.backend.GetJSON(ctx, key, &v)
		if errors.Is(err, pkgredis.ErrMiss) {
			missed = true
			return nil
		}
		return err
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.skipped.Add(1)
		return nil, false
	case err != nil:
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if missed {
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &v, true
}

func (c *QueryCache) set(ctx context.Context, key string, value any) {
	err := c.breaker.Execute(func() error {
		return c.backend.SetJSON(ctx, key, value, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached response for version, or for all versions
// when version is empty.
func (c *QueryCache) Invalidate(ctx context.Context, version string) (int64, error) {
	pattern := keyPrefix + "*"
	if version != "" {
		pattern = keyPrefix + version + ":*"
	}
	deleted, err := c.backend.FlushByPattern(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "version", version, "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Skipped: c.skipped.Load(),
		Breaker: c.breaker.State().String(),
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
