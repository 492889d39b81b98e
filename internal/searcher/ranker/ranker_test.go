package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
)

func buildIndex(t *testing.T, entries ...store.Entry) *index.Index {
	t.Helper()
	st, err := store.FromEntries(entries)
	require.NoError(t, err)
	return index.Build(st)
}

func exact(terms ...string) []TermMatch {
	out := make([]TermMatch, len(terms))
	for i, term := range terms {
		out[i] = TermMatch{Term: term, Discount: 1, Group: i}
	}
	return out
}

func byOrdinal(results []ScoredEntry) map[int]float64 {
	out := make(map[int]float64, len(results))
	for _, r := range results {
		out[r.Ordinal] = r.Score
	}
	return out
}

func TestRankFieldAndCategoryWeights(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t,
		store.Entry{Location: "/a", Page: "A", Title: "Foo", Text: "intro", Category: store.CategoryPage},
		store.Entry{Location: "/b", Page: "B", Title: "Bar", Text: "foo bar", Category: store.CategoryMethod},
		store.Entry{Location: "/c", Page: "C", Title: "Baz", Text: "nothing here", Category: "widget"},
	)

	scores := byOrdinal(Rank(idx, exact("foo"), DefaultWeights()))

	assert.Equal(t, map[int]float64{
		0: 7.5, // title 5.0 * page 1.5
		1: 1.0, // text 1.0 * method 1.0
	}, scores)
}

func TestRankSumsAcrossTermsAndFields(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t,
		store.Entry{Location: "/a", Page: "A", Title: "sort", Text: "sort sort array", Category: store.CategoryFunction},
	)

	results := Rank(idx, exact("sort", "array"), DefaultWeights())

	require.Len(t, results, 1)
	// sort: title 1*5 + text 2*1; array: text 1*1
	assert.Equal(t, 8.0, results[0].Score)
	assert.Equal(t, "/a", results[0].Entry.Location)
}

func TestRankUnknownCategoryUsesDefault(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	assert.Equal(t, 1.0, w.Category("widget"))
	assert.Equal(t, 0.9, w.Category(store.CategoryConstant))
}

func TestRankPrefixDiscount(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t,
		store.Entry{Location: "/a", Page: "A", Title: "sortperm"},
	)

	results := Rank(idx, []TermMatch{{Term: "sortperm", Discount: 0.5}}, DefaultWeights())

	require.Len(t, results, 1)
	assert.Equal(t, 2.5, results[0].Score)
}

func TestRankNoMatches(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t, store.Entry{Location: "/a", Page: "A", Title: "alpha"})
	assert.Empty(t, Rank(idx, exact("beta"), DefaultWeights()))
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.Title = w.Text
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.Categories[store.CategoryPage] = 0
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.PrefixDiscount = 0
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.TextFrequencyCap = 4
	assert.Error(t, w.Validate(), "capped text could outscore a title match")

	w = DefaultWeights()
	w.PrefixDiscount = 0.5
	assert.Error(t, w.Validate(), "an expansion in title and text could outscore a title match")
}

func TestRankExactTitleBeatsTextWithExpansions(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t,
		store.Entry{Location: "/t", Page: "T", Title: "foo", Category: store.CategoryConstant},
		store.Entry{Location: "/x", Page: "X", Title: "foobar foobaz", Text: "foo foo foo foobar foobar", Category: store.CategoryPage},
	)
	w := DefaultWeights()
	matches := []TermMatch{
		{Term: "foo", Discount: 1},
		{Term: "foobar", Discount: w.PrefixDiscount},
		{Term: "foobaz", Discount: w.PrefixDiscount},
	}

	scores := byOrdinal(Rank(idx, matches, w))

	assert.Equal(t, 4.5, scores[0]) // 5.0 * 0.9
	// best alternative only: foobar = (5 + 2) * 1.5 * 0.4
	assert.InDelta(t, 4.2, scores[1], 1e-9)
	assert.Greater(t, scores[0], scores[1])
}

func TestRankSumsGroupsButNotAlternatives(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t,
		store.Entry{Location: "/a", Page: "A", Title: "sort sortperm", Text: "array"},
	)
	matches := []TermMatch{
		{Term: "array", Discount: 1, Group: 0},
		{Term: "sort", Discount: 1, Group: 1},
		{Term: "sortperm", Discount: 0.4, Group: 1},
	}

	results := Rank(idx, matches, DefaultWeights())

	require.Len(t, results, 1)
	// array 1.0 + max(sort 5.0, sortperm 2.0)
	assert.Equal(t, 6.0, results[0].Score)
}

func TestRankCapsTextFrequency(t *testing.T) {
	t.Parallel()

	idx := buildIndex(t,
		store.Entry{Location: "/t", Page: "T", Title: "push", Category: store.CategoryConstant},
		store.Entry{Location: "/x", Page: "X", Text: "push push push push push push", Category: store.CategoryPage},
	)

	scores := byOrdinal(Rank(idx, exact("push"), DefaultWeights()))

	assert.Equal(t, 4.5, scores[0]) // 5.0 * 0.9
	assert.Equal(t, 3.0, scores[1]) // cap 2 * 1.0 * 1.5
	assert.Greater(t, scores[0], scores[1])
}

func TestLess(t *testing.T) {
	t.Parallel()

	assert.True(t, Less(ScoredEntry{Ordinal: 5, Score: 2}, ScoredEntry{Ordinal: 1, Score: 1}))
	assert.True(t, Less(ScoredEntry{Ordinal: 1, Score: 1}, ScoredEntry{Ordinal: 2, Score: 1}))
	assert.False(t, Less(ScoredEntry{Ordinal: 2, Score: 1}, ScoredEntry{Ordinal: 1, Score: 1}))
}
