// Package executor runs parsed queries against an index: exact and prefix
// term lookup, weighted scoring and top-k selection.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Options controls scoring. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Weights ranker.Weights
	// Prefix enables prefix expansion of the last query term.
	Prefix bool
}

func DefaultOptions() Options {
	return Options{Weights: ranker.DefaultWeights()}
}

// OptionsFromConfig overlays configured weights on the defaults and
// validates the result.
func OptionsFromConfig(cfg config.SearchConfig) (Options, error) {
	opts := DefaultOptions()
	opts.Prefix = cfg.PrefixMatch
	w := &opts.Weights
	if cfg.Weights.Title > 0 {
		w.Title = cfg.Weights.Title
	}
	if cfg.Weights.Text > 0 {
		w.Text = cfg.Weights.Text
	}
	if cfg.Weights.TextFrequencyCap > 0 {
		w.TextFrequencyCap = cfg.Weights.TextFrequencyCap
	}
	if cfg.Weights.PrefixDiscount > 0 {
		w.PrefixDiscount = cfg.Weights.PrefixDiscount
	}
	for cat, weight := range cfg.Weights.Categories {
		w.Categories[store.Category(cat)] = weight
	}
	if err := w.Validate(); err != nil {
		return Options{}, fmt.Errorf("search weights: %w", err)
	}
	return opts, nil
}

type SearchResult struct {
	Query      string               `json:"query"`
	Version    string               `json:"version"`
	Generation uint64               `json:"generation"`
	TotalHits  int                  `json:"total_hits"`
	Results    []ranker.ScoredEntry `json:"results"`
	TermStats  map[string]int       `json:"term_stats"`
}

type PageResult struct {
	Query      string           `json:"query"`
	Version    string           `json:"version"`
	Generation uint64           `json:"generation"`
	TotalPages int              `json:"total_pages"`
	Pages      []merger.PageHit `json:"pages"`
}

// Search ranks the entries of idx matching query and returns at most limit
// of them, best first. limit must be positive.
func Search(idx *index.Index, query string, limit int, opts Options) ([]ranker.ScoredEntry, error) {
	if limit <= 0 {
		return nil, apperrors.InvalidArgument("limit must be positive, got %d", limit)
	}
	plan := parser.Parse(query).WithPrefix(opts.Prefix)
	candidates, _ := rank(idx, plan, opts)
	return merger.TopK([][]ranker.ScoredEntry{candidates}, limit), nil
}

// SearchPages ranks entries like Search and groups them by page. limit
// bounds the number of pages.
func SearchPages(idx *index.Index, query string, limit int, opts Options) ([]merger.PageHit, error) {
	if limit <= 0 {
		return nil, apperrors.InvalidArgument("limit must be positive, got %d", limit)
	}
	plan := parser.Parse(query).WithPrefix(opts.Prefix)
	candidates, _ := rank(idx, plan, opts)
	merger.Sort(candidates)
	return merger.GroupByPage(candidates, limit), nil
}

// rank expands the plan into term matches and scores them. It also returns
// how many postings each query term contributed.
func rank(idx *index.Index, plan *parser.QueryPlan, opts Options) ([]ranker.ScoredEntry, map[string]int) {
	termStats := make(map[string]int)
	if plan.Empty() {
		return []ranker.ScoredEntry{}, termStats
	}

	matches := make([]ranker.TermMatch, 0, len(plan.Terms))
	for i, term := range plan.Terms {
		matches = append(matches, ranker.TermMatch{Term: term, Discount: 1, Group: i})
		if n := len(idx.Lookup(term)); n > 0 {
			termStats[term] = n
		}
	}
	if plan.Prefix {
		last := plan.LastTerm()
		lastGroup := len(plan.Terms) - 1
		for _, expanded := range idx.LookupPrefix(last) {
			if slices.Contains(plan.Terms, expanded) {
				continue
			}
			matches = append(matches, ranker.TermMatch{Term: expanded, Discount: opts.Weights.PrefixDiscount, Group: lastGroup})
			termStats[last] += len(idx.Lookup(expanded))
		}
	}
	return ranker.Rank(idx, matches, opts.Weights), termStats
}

// Executor runs plans against the live snapshot of one engine.
type Executor struct {
	engine *indexer.Engine
	opts   Options
	logger *slog.Logger
}

func New(engine *indexer.Engine, opts Options) *Executor {
	return &Executor{
		engine: engine,
		opts:   opts,
		logger: slog.Default().With("component", "query-executor", "version", engine.Version()),
	}
}

// Execute loads the current snapshot once and ranks plan against it.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if limit <= 0 {
		return nil, apperrors.InvalidArgument("limit must be positive, got %d", limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.engine.Snapshot()
	plan = e.applyDefaults(plan)

	candidates, termStats := rank(snap.Index, plan, e.opts)
	ranked := merger.TopK([][]ranker.ScoredEntry{candidates}, limit)

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"prefix", plan.Prefix,
		"generation", snap.Generation,
		"candidates", len(candidates),
		"results", len(ranked),
	)
	return &SearchResult{
		Query:      plan.RawQuery,
		Version:    snap.Version,
		Generation: snap.Generation,
		TotalHits:  len(candidates),
		Results:    ranked,
		TermStats:  termStats,
	}, nil
}

// ExecutePages is Execute grouped by page; limit bounds pages.
func (e *Executor) ExecutePages(ctx context.Context, plan *parser.QueryPlan, limit int) (*PageResult, error) {
	if limit <= 0 {
		return nil, apperrors.InvalidArgument("limit must be positive, got %d", limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.engine.Snapshot()
	plan = e.applyDefaults(plan)

	candidates, _ := rank(snap.Index, plan, e.opts)
	merger.Sort(candidates)
	all := merger.GroupByPage(candidates, 0)
	pages := all
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return &PageResult{
		Query:      plan.RawQuery,
		Version:    snap.Version,
		Generation: snap.Generation,
		TotalPages: len(all),
		Pages:      pages,
	}, nil
}

// Generation reports the generation queries would currently run against.
func (e *Executor) Generation() uint64 {
	return e.engine.Snapshot().Generation
}

func (e *Executor) applyDefaults(plan *parser.QueryPlan) *parser.QueryPlan {
	if e.opts.Prefix && !plan.Prefix {
		return plan.WithPrefix(true)
	}
	return plan
}
