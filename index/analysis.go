package index

import (
	"unicode"
	"unicode/utf8"
)

type Token struct {
	Text []byte
}

// StandardTokenizer lowercases its input and splits it on spaces and
// punctuation. It is not safe for concurrent use.
type StandardTokenizer struct {
	input  []byte
	offset int
	token  Token
	buffer []byte
}

func NewStandardTokenizer() *StandardTokenizer {
	return &StandardTokenizer{
		buffer: make([]byte, 0, 64),
	}
}

func (t *StandardTokenizer) Reset(input []byte) {
	t.input = input
	t.offset = 0
}

// NextToken returns false once the input is exhausted. The token is valid
// until the next call.
func (t *StandardTokenizer) NextToken() (*Token, bool) {
	t.buffer = t.buffer[:0]

	for t.offset < len(t.input) {
		r, size := utf8.DecodeRune(t.input[t.offset:])
		t.offset += size

		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			if len(t.buffer) > 0 {
				return t.emit(), true
			}
			continue
		}

		t.buffer = utf8.AppendRune(t.buffer, unicode.ToLower(r))
	}

	if len(t.buffer) > 0 {
		return t.emit(), true
	}

	return nil, false
}

func (t *StandardTokenizer) emit() *Token {
	t.token.Text = t.buffer
	return &t.token
}
