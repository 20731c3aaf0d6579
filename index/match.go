package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

type MatchType byte

const (
	// Should matches docs containing any of the terms.
	Should MatchType = iota
	// Must matches docs containing every term.
	Must
)

func (t MatchType) String() string {
	if t == Must {
		return "must"
	}
	return "should"
}

func ParseMatchType(s string) (MatchType, error) {
	switch s {
	case "should", "any":
		return Should, nil
	case "must", "all":
		return Must, nil
	default:
		return 0, fmt.Errorf("unknown match type %q", s)
	}
}

// Match returns the global ids of the docs of field matching terms.
func (r *IndexReader) Match(field string, terms [][]byte, matchType MatchType) (*roaring64.Bitmap, error) {
	if len(terms) == 0 {
		return roaring64.NewBitmap(), nil
	}

	result, err := r.Search(field, terms[0])
	if err != nil {
		return nil, err
	}

	for _, term := range terms[1:] {
		if matchType == Must && result.IsEmpty() {
			break
		}

		docIds, err := r.Search(field, term)
		if err != nil {
			return nil, err
		}

		if matchType == Must {
			result.And(docIds)
		} else {
			result.Or(docIds)
		}
	}

	return result, nil
}

// Analyze tokenizes text the way text fields are indexed.
func Analyze(text string) [][]byte {
	tokenizer := NewStandardTokenizer()
	tokenizer.Reset([]byte(text))

	var terms [][]byte
	for {
		token, ok := tokenizer.NextToken()
		if !ok {
			return terms
		}
		terms = append(terms, append([]byte(nil), token.Text...))
	}
}
