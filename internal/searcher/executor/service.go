package executor

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
)

// Service dispatches queries to the executor of the requested version. The
// version set is fixed by the catalog, so executors are built once.
type Service struct {
	catalog   *catalog.Catalog
	executors map[string]*Executor
	opts      Options
}

func NewService(cat *catalog.Catalog, opts Options) *Service {
	s := &Service{
		catalog:   cat,
		executors: make(map[string]*Executor),
		opts:      opts,
	}
	for version, engine := range cat.All() {
		s.executors[version] = New(engine, opts)
	}
	return s
}

func (s *Service) executor(version string) (*Executor, error) {
	engine, err := s.catalog.Get(version)
	if err != nil {
		return nil, err
	}
	exec, ok := s.executors[engine.Version()]
	if !ok {
		return nil, fmt.Errorf("no executor for version %q", engine.Version())
	}
	return exec, nil
}

// Search runs plan against version; an empty version means the default.
func (s *Service) Search(ctx context.Context, version string, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	exec, err := s.executor(version)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, plan, limit)
}

// SearchPages runs plan against version and groups hits by page.
func (s *Service) SearchPages(ctx context.Context, version string, plan *parser.QueryPlan, limit int) (*PageResult, error) {
	exec, err := s.executor(version)
	if err != nil {
		return nil, err
	}
	return exec.ExecutePages(ctx, plan, limit)
}

// Generation resolves version and returns its live generation.
func (s *Service) Generation(version string) (string, uint64, error) {
	exec, err := s.executor(version)
	if err != nil {
		return "", 0, err
	}
	return exec.engine.Version(), exec.Generation(), nil
}

// Prefix reports whether prefix expansion is on by default.
func (s *Service) Prefix() bool {
	return s.opts.Prefix
}
