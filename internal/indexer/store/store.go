// Package store holds the validated, immutable documentation entries an
// index is built from.
package store

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
)

// Category is an open tag describing what kind of object an entry documents.
type Category string

const (
	CategoryPage     Category = "page"
	CategorySection  Category = "section"
	CategoryModule   Category = "module"
	CategoryType     Category = "type"
	CategoryFunction Category = "function"
	CategoryMethod   Category = "method"
	CategoryMacro    Category = "macro"
	CategoryConstant Category = "constant"
	CategoryOther    Category = "other"
)

// Entry is one searchable documentation record.
type Entry struct {
	Location string   `json:"location"`
	Page     string   `json:"page"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// Store is an ordered, read-only set of entries. An entry's position is its
// ordinal.
type Store struct {
	entries []Entry
	pages   []string
}

// Load validates raws and builds a Store. Either every entry is accepted or
// a *validator.ValidationError describing each bad entry is returned.
func Load(raws []ingestion.RawEntry) (*Store, error) {
	if err := validator.ValidateEntries(raws); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(raws))
	seen := make(map[string]struct{})
	var pages []string
	for i, raw := range raws {
		e := Entry{
			Location: *raw.Location,
			Page:     *raw.Page,
			Title:    deref(raw.Title),
			Text:     deref(raw.Text),
			Category: Category(deref(raw.Category)),
		}
		if e.Category == "" {
			e.Category = CategoryOther
		}
		entries[i] = e
		if _, ok := seen[e.Page]; !ok {
			seen[e.Page] = struct{}{}
			pages = append(pages, e.Page)
		}
	}
	return &Store{entries: entries, pages: pages}, nil
}

// FromEntries builds a Store from already-normalised entries.
func FromEntries(entries []Entry) (*Store, error) {
	raws := make([]ingestion.RawEntry, len(entries))
	for i := range entries {
		e := entries[i]
		cat := string(e.Category)
		raws[i] = ingestion.RawEntry{
			Location: &e.Location,
			Page:     &e.Page,
			Title:    &e.Title,
			Text:     &e.Text,
			Category: &cat,
		}
	}
	return Load(raws)
}

// Empty returns a Store with no entries.
func Empty() *Store {
	return &Store{}
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Entry returns the entry at ordinal. It panics when ordinal is out of range,
// like a slice index.
func (s *Store) Entry(ordinal int) Entry {
	if ordinal < 0 || ordinal >= len(s.entries) {
		panic(fmt.Sprintf("store: ordinal %d out of range [0,%d)", ordinal, len(s.entries)))
	}
	return s.entries[ordinal]
}

// Entries returns a copy of all entries in ordinal order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Pages returns distinct page names in first-seen order.
func (s *Store) Pages() []string {
	out := make([]string, len(s.pages))
	copy(out, s.pages)
	return out
}

// Categories counts entries per category.
func (s *Store) Categories() map[Category]int {
	counts := make(map[Category]int)
	for _, e := range s.entries {
		counts[e.Category]++
	}
	return counts
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
