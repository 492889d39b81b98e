// Package tokenizer turns titles, body text and queries into normalised
// terms. Indexing and query parsing share this code path, so a term found in
// a query always matches the same term found in a document.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTermRunes = 2

// Keywords such as "for", "if" and "do" are deliberately absent: they are
// meaningful in API documentation.
var stopWords = map[string]struct{}{
	"an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "who": {}, "their": {},
	"each": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its position among the kept
// terms of the source text.
type Token struct {
	Term     string
	Position int
}

// Tokenize lower-cases text, splits it on runs of characters that are
// neither letters nor digits and drops short terms and stop words.
func Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTermRunes {
			continue
		}
		if IsStopWord(word) {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns only the terms of Tokenize(text), in order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// IsStopWord reports whether the lower-cased term is ignored.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}
