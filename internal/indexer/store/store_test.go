package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	st, err := Load([]ingestion.RawEntry{
		{Location: ingestion.Str("/a"), Page: ingestion.Str("A")},
		{Location: ingestion.Str("/a#x"), Page: ingestion.Str("A"), Title: ingestion.Str("X"), Category: ingestion.Str("")},
		{Location: ingestion.Str("/b"), Page: ingestion.Str("B"), Text: ingestion.Str("body"), Category: ingestion.Str("method")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, st.Len())
	assert.Equal(t, Entry{Location: "/a", Page: "A", Category: CategoryOther}, st.Entry(0))
	assert.Equal(t, CategoryOther, st.Entry(1).Category)
	assert.Equal(t, CategoryMethod, st.Entry(2).Category)
	assert.Equal(t, "body", st.Entry(2).Text)
	assert.Equal(t, []string{"A", "B"}, st.Pages())
	assert.Equal(t, map[Category]int{CategoryOther: 2, CategoryMethod: 1}, st.Categories())
}

func TestLoadRejectsWholeBatch(t *testing.T) {
	t.Parallel()

	st, err := Load([]ingestion.RawEntry{
		{Location: ingestion.Str("/a"), Page: ingestion.Str("A")},
		{Location: ingestion.Str("/b")},
	})

	assert.Nil(t, st)
	require.ErrorIs(t, err, apperrors.ErrValidation)
	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"docs[1].page": "page is required"}, verr.Fields)
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()

	st, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
	assert.Empty(t, st.Pages())
	assert.Equal(t, 0, Empty().Len())
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	st, err := FromEntries([]Entry{{Location: "/a", Page: "A", Title: "Alpha", Category: CategoryPage}})
	require.NoError(t, err)

	entries := st.Entries()
	entries[0].Title = "mutated"
	assert.Equal(t, "Alpha", st.Entry(0).Title)
}

func TestEntryOutOfRangePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { Empty().Entry(0) })
}
