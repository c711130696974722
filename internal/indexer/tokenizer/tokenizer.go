// Package tokenizer turns forum record bodies into index terms. It splits on
// a fixed delimiter class, runs each candidate through the normalization
// steps of normalize.go, and discards markup noise and stopwords.
package tokenizer

import (
	"iter"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
)

// delimiters holds the ASCII bytes that separate tokens: the whitespace class
// plus . , ! ? : ; " ( ) < > [ ] # $ = - /
var delimiters = func() (set [256]bool) {
	for _, c := range []byte(" \t\n\r\f\v.,!?:;\"()<>[]#$=-/") {
		set[c] = true
	}
	return set
}()

// Tokenizer is stateless across records and safe for concurrent use.
type Tokenizer struct {
	markup    Vocabulary
	stopWords Vocabulary
}

// New returns a Tokenizer filtering with the given vocabularies.
func New(markup, stopWords Vocabulary) *Tokenizer {
	return &Tokenizer{markup: markup, stopWords: stopWords}
}

// Default returns a Tokenizer using the built-in vocabularies.
func Default() *Tokenizer {
	return New(DefaultMarkup(), DefaultStopWords())
}

// Split yields the non-empty raw tokens of text in order.
func Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		for i := 0; i < len(text); i++ {
			if !delimiters[text[i]] {
				continue
			}
			if i > start && !yield(text[start:i]) {
				return
			}
			start = i + 1
		}
		if start < len(text) {
			yield(text[start:])
		}
	}
}

// Terms yields every surviving normalized term of text, one per occurrence.
func (t *Tokenizer) Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for raw := range Split(text) {
			term := Normalize(raw)
			if !t.Keep(term) {
				continue
			}
			if !yield(term) {
				return
			}
		}
	}
}

// Keep reports whether a normalized term survives filtering.
func (t *Tokenizer) Keep(term string) bool {
	return term != "" && !t.markup.Contains(term) && !t.stopWords.Contains(term)
}

// Occurrences yields a (term, record id) pair for every surviving term of
// the record body. An unparseable record id is an error only when the body
// has a surviving term, so a header row ("id ... body ...") yields nothing.
// Body text is never an error.
func (t *Tokenizer) Occurrences(rec forum.Record) (iter.Seq[index.Occurrence], error) {
	id, err := rec.NumericID()
	if err != nil {
		for range t.Terms(rec.Body) {
			return nil, err
		}
		return func(func(index.Occurrence) bool) {}, nil
	}
	return func(yield func(index.Occurrence) bool) {
		for term := range t.Terms(rec.Body) {
			if !yield(index.Occurrence{Term: term, RecordID: id}) {
				return
			}
		}
	}, nil
}
