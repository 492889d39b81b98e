// Package handler exposes search, index inspection and cache administration
// over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

type SearchService interface {
	Search(ctx context.Context, version string, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
	SearchPages(ctx context.Context, version string, plan *parser.QueryPlan, limit int) (*executor.PageResult, error)
	Generation(version string) (string, uint64, error)
	Prefix() bool
}

// Limits bounds request parameters.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
	Timeout      time.Duration
}

type Handler struct {
	service   SearchService
	catalog   *catalog.Catalog
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	limits    Limits
	logger    *slog.Logger
}

// New wires the search endpoints. queryCache, collector and m may be nil.
func New(svc SearchService, cat *catalog.Catalog, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, limits Limits) *Handler {
	return &Handler{
		service:   svc,
		catalog:   cat,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		limits:    limits,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// request is the parsed form of a search query string.
type request struct {
	query      string
	version    string
	generation uint64
	limit      int
	plan       *parser.QueryPlan
}

func (h *Handler) parseRequest(r *http.Request) (*request, error) {
	q := r.URL.Query()
	// A missing q tokenizes to nothing and is answered like a stop-word query.
	query := q.Get("q")

	limit := h.limits.DefaultLimit
	if s := q.Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			return nil, apperrors.InvalidArgument("limit must be a positive integer")
		}
		limit = min(parsed, h.limits.MaxLimit)
	}

	// prefix=true enables expansion when the server default is off.
	prefix := h.service.Prefix()
	if s := q.Get("prefix"); s != "" {
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return nil, apperrors.InvalidArgument("prefix must be a boolean")
		}
		prefix = prefix || parsed
	}

	version, generation, err := h.service.Generation(q.Get("version"))
	if err != nil {
		return nil, err
	}
	return &request{
		query:      query,
		version:    version,
		generation: generation,
		limit:      limit,
		plan:       parser.Parse(query).WithPrefix(prefix),
	}, nil
}

func (req *request) cacheKey() cache.Key {
	return cache.Key{Version: req.version, Generation: req.generation, Plan: req.plan, Limit: req.limit}
}

// Search handles GET /api/v1/search?q=&limit=&version=&prefix=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := h.parseRequest(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if req.plan.Empty() {
		h.observe(req, "empty_query", "skipped", 0, start)
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:      req.query,
			Version:    req.version,
			Generation: req.generation,
			Results:    []ranker.ScoredEntry{},
			TermStats:  map[string]int{},
		})
		return
	}

	ctx, span := tracing.StartChildSpan(r.Context(), "search.execute")
	compute := func() (*executor.SearchResult, error) {
		return resilience.Call(ctx, h.limits.Timeout, "search", func(ctx context.Context) (*executor.SearchResult, error) {
			return h.service.Search(ctx, req.version, req.plan, req.limit)
		})
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.Search(ctx, req.cacheKey(), compute)
	} else {
		result, err = compute()
	}
	span.SetError(err)
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	if err != nil {
		h.fail(w, r, req, err, start)
		return
	}
	span.SetAttr("total_hits", result.TotalHits)
	// cached results are shared between queries with the same terms
	echoed := *result
	echoed.Query = req.query
	result = &echoed

	h.complete(r, req, analytics.EventSearch, result.TotalHits, len(result.Results), cacheHit, start)
	h.writeJSON(w, http.StatusOK, result)
}

// Pages handles GET /api/v1/search/pages; limit bounds pages.
func (h *Handler) Pages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := h.parseRequest(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if req.plan.Empty() {
		h.observe(req, "empty_query", "skipped", 0, start)
		h.writeJSON(w, http.StatusOK, &executor.PageResult{
			Query:      req.query,
			Version:    req.version,
			Generation: req.generation,
			Pages:      []merger.PageHit{},
		})
		return
	}

	ctx, span := tracing.StartChildSpan(r.Context(), "search.pages")
	compute := func() (*executor.PageResult, error) {
		return resilience.Call(ctx, h.limits.Timeout, "search-pages", func(ctx context.Context) (*executor.PageResult, error) {
			return h.service.SearchPages(ctx, req.version, req.plan, req.limit)
		})
	}

	var result *executor.PageResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.Pages(ctx, req.cacheKey(), compute)
	} else {
		result, err = compute()
	}
	span.SetError(err)
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	if err != nil {
		h.fail(w, r, req, err, start)
		return
	}
	echoed := *result
	echoed.Query = req.query
	result = &echoed

	h.complete(r, req, analytics.EventPages, result.TotalPages, len(result.Pages), cacheHit, start)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) complete(r *http.Request, req *request, kind analytics.EventType, total, returned int, cacheHit bool, start time.Time) {
	latency := time.Since(start)
	resultType := "hit"
	if total == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	h.observe(req, resultType, cacheStatus, returned, start)

	logger.FromContext(r.Context()).Info("search completed",
		"query", req.query,
		"version", req.version,
		"generation", req.generation,
		"total_hits", total,
		"returned", returned,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		eventType := kind
		if total == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.TrackSearch(analytics.SearchEvent{
			Type:       eventType,
			Version:    req.version,
			Generation: req.generation,
			Query:      req.query,
			Terms:      req.plan.Terms,
			Prefix:     req.plan.Prefix,
			TotalHits:  total,
			Returned:   returned,
			LatencyMs:  latency.Milliseconds(),
			CacheHit:   cacheHit,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(r.Context()),
		})
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, req *request, err error, start time.Time) {
	h.observe(req, "error", "skipped", 0, start)
	logger.FromContext(r.Context()).Error("search failed", "query", req.query, "version", req.version, "error", err)
	h.writeAppError(w, err)
}

func (h *Handler) observe(req *request, resultType, cacheStatus string, returned int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(req.version, resultType).Inc()
	if resultType == "error" || resultType == "empty_query" {
		return
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.WithLabelValues(req.version).Observe(float64(returned))
}

type termCount struct {
	Term     string `json:"term"`
	Postings int    `json:"postings"`
}

type indexStats struct {
	Version    string         `json:"version"`
	Generation uint64         `json:"generation"`
	LoadedAt   time.Time      `json:"loaded_at"`
	Digest     string         `json:"digest,omitempty"`
	Entries    int            `json:"entries"`
	Terms      int            `json:"terms"`
	Postings   int            `json:"postings"`
	Pages      int            `json:"pages"`
	Categories map[string]int `json:"categories"`
	TopTerms   []termCount    `json:"top_terms"`
}

// IndexStats handles GET /api/v1/index/stats?version=&top=.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	engine, err := h.catalog.Get(r.URL.Query().Get("version"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	top := 10
	if s := r.URL.Query().Get("top"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		top = min(parsed, 1000)
	}

	snap := engine.Snapshot()
	stats := snap.Index.Stats()
	resp := indexStats{
		Version:    snap.Version,
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt,
		Digest:     snap.Digest,
		Entries:    stats.Entries,
		Terms:      stats.Terms,
		Postings:   stats.Postings,
		Pages:      stats.Pages,
		Categories: make(map[string]int),
		TopTerms:   []termCount{},
	}
	for c, n := range snap.Index.Store().Categories() {
		resp.Categories[string(c)] = n
	}
	for _, te := range snap.Index.TopTerms(top) {
		resp.TopTerms = append(resp.TopTerms, termCount{Term: te.Term, Postings: len(te.Postings)})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type versionInfo struct {
	Name       string    `json:"name"`
	Default    bool      `json:"default"`
	Generation uint64    `json:"generation"`
	Entries    int       `json:"entries"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Versions handles GET /api/v1/versions.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	out := make([]versionInfo, 0)
	for _, v := range h.catalog.Versions() {
		engine, err := h.catalog.Get(v)
		if err != nil {
			continue
		}
		snap := engine.Snapshot()
		out = append(out, versionInfo{
			Name:       v,
			Default:    v == h.catalog.DefaultVersion(),
			Generation: snap.Generation,
			Entries:    snap.Index.Len(),
			LoadedAt:   snap.LoadedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"versions": out})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheInvalidate handles POST /api/v1/cache/invalidate?version=. Without a
// version every cached response is dropped.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	version := r.URL.Query().Get("version")
	if version != "" {
		if _, err := h.catalog.Get(version); err != nil {
			h.writeAppError(w, err)
			return
		}
	}
	deleted, err := h.cache.Invalidate(r.Context(), version)
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err, "search failed"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
