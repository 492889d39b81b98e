// Package ranker scores index entries against query terms using field and
// category weights.
package ranker

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
)

const defaultCategoryWeight = 1.0

// ScoredEntry is one ranked hit.
type ScoredEntry struct {
	Entry   store.Entry `json:"entry"`
	Ordinal int         `json:"ordinal"`
	Score   float64     `json:"score"`
}

// Weights is the scoring policy. A single title occurrence in the lowest
// weighted category must outscore the largest possible text contribution in
// the highest weighted one, so text occurrences are capped at
// TextFrequencyCap. The same must hold against the best prefix expansion,
// which bounds PrefixDiscount.
type Weights struct {
	Title            float64                    `yaml:"title"`
	Text             float64                    `yaml:"text"`
	TextFrequencyCap int                        `yaml:"textFrequencyCap"`
	Categories       map[store.Category]float64 `yaml:"categories"`
	PrefixDiscount   float64                    `yaml:"prefixDiscount"`
}

func DefaultWeights() Weights {
	return Weights{
		Title:            5.0,
		Text:             1.0,
		TextFrequencyCap: 2,
		Categories: map[store.Category]float64{
			store.CategoryPage:     1.5,
			store.CategorySection:  1.3,
			store.CategoryModule:   1.25,
			store.CategoryType:     1.2,
			store.CategoryFunction: 1.0,
			store.CategoryMethod:   1.0,
			store.CategoryMacro:    1.0,
			store.CategoryConstant: 0.9,
			store.CategoryOther:    1.0,
		},
		PrefixDiscount: 0.4,
	}
}

func (w Weights) Validate() error {
	if w.Text <= 0 {
		return fmt.Errorf("text weight must be positive, got %v", w.Text)
	}
	if w.Title <= w.Text {
		return fmt.Errorf("title weight %v must exceed text weight %v", w.Title, w.Text)
	}
	if w.TextFrequencyCap <= 0 {
		return fmt.Errorf("text frequency cap must be positive, got %d", w.TextFrequencyCap)
	}
	minCat, maxCat := defaultCategoryWeight, defaultCategoryWeight
	for cat, weight := range w.Categories {
		if weight <= 0 {
			return fmt.Errorf("category %q weight must be positive, got %v", cat, weight)
		}
		minCat = math.Min(minCat, weight)
		maxCat = math.Max(maxCat, weight)
	}
	if w.Title*minCat <= w.Text*float64(w.TextFrequencyCap)*maxCat {
		return fmt.Errorf("title weight %v x %v does not outscore capped text weight %v x %d x %v",
			w.Title, minCat, w.Text, w.TextFrequencyCap, maxCat)
	}
	if w.PrefixDiscount <= 0 || w.PrefixDiscount > 1 {
		return fmt.Errorf("prefix discount must be in (0,1], got %v", w.PrefixDiscount)
	}
	// an expansion may sit in both fields of one entry
	expansion := w.PrefixDiscount * (w.Title + w.Text*float64(w.TextFrequencyCap)) * maxCat
	if w.Title*minCat <= expansion {
		return fmt.Errorf("prefix discount %v lets an expanded term score %v, not below a title match %v",
			w.PrefixDiscount, expansion, w.Title*minCat)
	}
	return nil
}

func (w Weights) Field(f index.Field) float64 {
	if f == index.FieldTitle {
		return w.Title
	}
	return w.Text
}

// Occurrences returns the frequency a posting is scored with.
func (w Weights) Occurrences(p index.Posting) float64 {
	if p.Field == index.FieldText && w.TextFrequencyCap > 0 && p.Frequency > w.TextFrequencyCap {
		return float64(w.TextFrequencyCap)
	}
	return float64(p.Frequency)
}

// Category returns the multiplier for c; unknown categories get 1.0.
func (w Weights) Category(c store.Category) float64 {
	if weight, ok := w.Categories[c]; ok {
		return weight
	}
	return defaultCategoryWeight
}

// TermMatch is a dictionary term to score, scaled by Discount. Matches that
// share a Group are alternatives for one query term: an exact term and its
// prefix expansions.
type TermMatch struct {
	Term     string
	Discount float64
	Group    int
}

// Rank scores every entry that has at least one posting for matches. Within
// a group an entry keeps only its best matching term; groups are summed.
// The result is unordered and each entry appears once.
func Rank(idx *index.Index, matches []TermMatch, w Weights) []ScoredEntry {
	st := idx.Store()
	type slot struct {
		ordinal int
		group   int
	}
	best := make(map[slot]float64)
	order := make([]int, 0)
	seen := make(map[int]struct{})
	for _, m := range matches {
		perEntry := make(map[int]float64)
		for _, p := range idx.Lookup(m.Term) {
			cat := st.Entry(p.Ordinal).Category
			contribution := w.Occurrences(p) * w.Field(p.Field) * w.Category(cat) * m.Discount
			if contribution > 0 {
				perEntry[p.Ordinal] += contribution
			}
		}
		for _, p := range idx.Lookup(m.Term) {
			score, ok := perEntry[p.Ordinal]
			if !ok {
				continue
			}
			delete(perEntry, p.Ordinal)
			if _, ok := seen[p.Ordinal]; !ok {
				seen[p.Ordinal] = struct{}{}
				order = append(order, p.Ordinal)
			}
			key := slot{p.Ordinal, m.Group}
			best[key] = math.Max(best[key], score)
		}
	}

	scores := make(map[int]float64, len(order))
	for key, score := range best {
		scores[key.ordinal] += score
	}
	result := make([]ScoredEntry, 0, len(order))
	for _, ord := range order {
		result = append(result, ScoredEntry{
			Entry:   st.Entry(ord),
			Ordinal: ord,
			Score:   math.Round(scores[ord]*10000) / 10000,
		})
	}
	return result
}

// Less orders by score descending, then ordinal ascending.
func Less(a, b ScoredEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Ordinal < b.Ordinal
}
