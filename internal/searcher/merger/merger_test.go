package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

func hit(ord int, page string, score float64) ranker.ScoredEntry {
	return ranker.ScoredEntry{
		Entry:   store.Entry{Location: page + "#" + string(rune('a'+ord)), Page: page},
		Ordinal: ord,
		Score:   score,
	}
}

func ordinals(results []ranker.ScoredEntry) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Ordinal
	}
	return out
}

func TestTopK(t *testing.T) {
	t.Parallel()

	results := []ranker.ScoredEntry{
		hit(3, "P", 1.0),
		hit(0, "P", 2.0),
		hit(2, "Q", 1.0),
		hit(1, "Q", 5.0),
	}

	assert.Equal(t, []int{1, 0, 2, 3}, ordinals(TopK([][]ranker.ScoredEntry{results}, 0)))
	assert.Equal(t, []int{1, 0, 2}, ordinals(TopK([][]ranker.ScoredEntry{results}, 3)))
	assert.Equal(t, []int{1}, ordinals(TopK([][]ranker.ScoredEntry{results}, 1)))
	assert.Empty(t, TopK(nil, 5))
}

func TestTopKAcrossLists(t *testing.T) {
	t.Parallel()

	got := TopK([][]ranker.ScoredEntry{
		{hit(4, "P", 1.0), hit(5, "P", 3.0)},
		{hit(1, "Q", 1.0)},
	}, 2)

	assert.Equal(t, []int{5, 1}, ordinals(got))
}

func TestSortMatchesTopK(t *testing.T) {
	t.Parallel()

	results := []ranker.ScoredEntry{hit(2, "P", 1), hit(0, "P", 1), hit(1, "P", 4)}
	want := ordinals(TopK([][]ranker.ScoredEntry{results}, 0))

	Sort(results)
	assert.Equal(t, want, ordinals(results))
}

func TestGroupByPage(t *testing.T) {
	t.Parallel()

	ranked := []ranker.ScoredEntry{
		hit(4, "Q", 6.0),
		hit(0, "P", 4.0),
		hit(5, "Q", 2.0),
		hit(1, "R", 1.0),
	}

	pages := GroupByPage(ranked, 0)
	require.Len(t, pages, 3)
	assert.Equal(t, "Q", pages[0].Page)
	assert.Equal(t, 6.0, pages[0].Score)
	assert.Equal(t, []int{4, 5}, ordinals(pages[0].Entries))
	assert.Equal(t, "P", pages[1].Page)
	assert.Equal(t, "R", pages[2].Page)

	assert.Len(t, GroupByPage(ranked, 2), 2)
	assert.Empty(t, GroupByPage(nil, 3))
}
