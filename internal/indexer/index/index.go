// Package index builds the read-only inverted index over a record store.
package index

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// Index maps terms to postings. It is never mutated after Build returns, so
// any number of goroutines may read it.
type Index struct {
	st       *store.Store
	postings map[string]PostingList
	dict     []string
	pages    map[string][]int
	total    int
}

// Build tokenises the title and text of every entry in store order.
func Build(st *store.Store) *Index {
	if st == nil {
		st = store.Empty()
	}
	idx := &Index{
		st:       st,
		postings: make(map[string]PostingList),
		pages:    make(map[string][]int),
	}

	for ord := 0; ord < st.Len(); ord++ {
		e := st.Entry(ord)
		idx.addField(ord, FieldTitle, e.Title)
		idx.addField(ord, FieldText, e.Text)
		idx.pages[e.Page] = append(idx.pages[e.Page], ord)
	}

	idx.dict = make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		idx.dict = append(idx.dict, term)
	}
	sort.Strings(idx.dict)
	return idx
}

func (idx *Index) addField(ord int, field Field, text string) {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return
	}
	termData := make(map[string]*Posting, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				Ordinal:   ord,
				Field:     field,
				Positions: make([]int, 0, 2),
			}
			termData[token.Term] = p
			order = append(order, token.Term)
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}
	for _, term := range order {
		idx.postings[term] = append(idx.postings[term], *termData[term])
		idx.total++
	}
}

// Lookup returns the postings for an already-normalised term. The returned
// slice is shared and must not be modified.
func (idx *Index) Lookup(term string) PostingList {
	return idx.postings[term]
}

// LookupPrefix returns dictionary terms starting with prefix, sorted.
func (idx *Index) LookupPrefix(prefix string) []string {
	if prefix == "" {
		return nil
	}
	start := sort.SearchStrings(idx.dict, prefix)
	var terms []string
	for i := start; i < len(idx.dict) && strings.HasPrefix(idx.dict[i], prefix); i++ {
		terms = append(terms, idx.dict[i])
	}
	return terms
}

// PageEntries returns the ordinals on page in ascending order.
func (idx *Index) PageEntries(page string) []int {
	ords := idx.pages[page]
	out := make([]int, len(ords))
	copy(out, ords)
	return out
}

// Pages returns page names in first-seen order.
func (idx *Index) Pages() []string {
	return idx.st.Pages()
}

func (idx *Index) Store() *store.Store {
	return idx.st
}

func (idx *Index) Len() int {
	return idx.st.Len()
}

func (idx *Index) Stats() Stats {
	return Stats{
		Entries:  idx.st.Len(),
		Terms:    len(idx.dict),
		Postings: idx.total,
		Pages:    len(idx.pages),
	}
}

// Snapshot returns every term with its postings, sorted by term.
func (idx *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.dict))
	for _, term := range idx.dict {
		entries = append(entries, TermEntry{Term: term, Postings: idx.postings[term]})
	}
	return entries
}

// TopTerms returns up to n terms with the most postings, ties by term.
func (idx *Index) TopTerms(n int) []TermEntry {
	all := idx.Snapshot()
	sort.SliceStable(all, func(i, j int) bool {
		return len(all[i].Postings) > len(all[j].Postings)
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
