// Package merger selects and groups ranked entries.
package merger

import (
	"container/heap"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

// PageHit groups the ranked entries of one page. Score is the best entry
// score on the page.
type PageHit struct {
	Page    string               `json:"page"`
	Score   float64              `json:"score"`
	Entries []ranker.ScoredEntry `json:"entries"`
}

// TopK returns the best limit entries across all lists in rank order
// (score descending, ordinal ascending). limit <= 0 keeps everything.
func TopK(lists [][]ranker.ScoredEntry, limit int) []ranker.ScoredEntry {
	if limit <= 0 {
		total := 0
		for _, l := range lists {
			total += len(l)
		}
		limit = total
	}
	h := &scoredEntryHeap{}
	heap.Init(h)
	for _, results := range lists {
		for _, entry := range results {
			heap.Push(h, entry)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredEntry, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredEntry)
	}
	return result
}

// Sort orders ranked entries in place.
func Sort(results []ranker.ScoredEntry) {
	sort.Slice(results, func(i, j int) bool {
		return ranker.Less(results[i], results[j])
	})
}

// GroupByPage folds ranked entries into pages. Entries must already be in
// rank order; pages come out ordered by their best entry and at most limit
// pages are returned when limit > 0.
func GroupByPage(ranked []ranker.ScoredEntry, limit int) []PageHit {
	pos := make(map[string]int)
	pages := make([]PageHit, 0)
	for _, r := range ranked {
		i, ok := pos[r.Entry.Page]
		if !ok {
			i = len(pages)
			pos[r.Entry.Page] = i
			pages = append(pages, PageHit{Page: r.Entry.Page, Score: r.Score})
		}
		pages[i].Entries = append(pages[i].Entries, r)
	}
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

// scoredEntryHeap is a min-heap on rank: the root is the worst kept entry.
type scoredEntryHeap []ranker.ScoredEntry

func (h scoredEntryHeap) Len() int { return len(h) }

func (h scoredEntryHeap) Less(i, j int) bool {
	return ranker.Less(h[j], h[i])
}

func (h scoredEntryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredEntryHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredEntry))
}

func (h *scoredEntryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
