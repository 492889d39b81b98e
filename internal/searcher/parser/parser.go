// Package parser turns a free-text query into the ordered, de-duplicated
// terms the executor looks up.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

type QueryPlan struct {
	Terms    []string
	RawQuery string
	// Prefix expands the last term to every dictionary term it starts.
	Prefix bool
}

// Parse tokenises query with the indexing tokenizer. Repeated terms are kept
// once, at their first position.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	seen := make(map[string]struct{})
	for _, term := range tokenizer.Terms(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}

// WithPrefix returns a copy of the plan with prefix expansion set.
func (p *QueryPlan) WithPrefix(enabled bool) *QueryPlan {
	cp := *p
	cp.Prefix = enabled
	return &cp
}

// Empty reports whether the query produced no searchable terms.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// LastTerm is the term subject to prefix expansion.
func (p *QueryPlan) LastTerm() string {
	if len(p.Terms) == 0 {
		return ""
	}
	return p.Terms[len(p.Terms)-1]
}
