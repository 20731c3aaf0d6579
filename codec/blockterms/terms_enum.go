package blockterms

import (
	"bytes"
	"errors"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

// TermsEnum walks the blocks of one field. It is not safe for concurrent use.
type TermsEnum struct {
	blockRemaining uint64
	eof            bool
	fieldReader    *FieldReader
	in             *store.DataInput
	positioned     bool
	state          codec.TermState
	term           []byte
}

// Next returns the next term, or nil at the end of the field. The empty term
// is returned as a non-nil empty slice. The returned slice is only valid
// until the next call.
func (e *TermsEnum) Next() ([]byte, error) {
	if e.eof {
		return nil, nil
	}

	if e.blockRemaining == 0 {
		if e.in.Len() == 0 {
			e.eof = true
			e.positioned = false
			return nil, nil
		}

		count, err := e.in.ReadUvarint()
		if err != nil {
			return nil, e.corrupt(err)
		}

		if count == 0 {
			return nil, e.corrupt(errors.New("empty block"))
		}

		e.blockRemaining = count
	}

	prefix, err := e.in.ReadUvarint()
	if err != nil {
		return nil, e.corrupt(err)
	}

	if prefix > uint64(len(e.term)) {
		return nil, e.corrupt(errors.New("shared prefix longer than previous term"))
	}

	suffix, err := e.readBytes()
	if err != nil {
		return nil, err
	}

	docFreq, err := e.in.ReadUvarint()
	if err != nil {
		return nil, e.corrupt(err)
	}

	totalTermFreq, err := e.in.ReadUvarint()
	if err != nil {
		return nil, e.corrupt(err)
	}

	meta, err := e.readBytes()
	if err != nil {
		return nil, err
	}

	e.term = append(e.term[:prefix], suffix...)
	e.state = codec.TermState{
		DocFreq:       uint32(docFreq),
		TotalTermFreq: totalTermFreq,
		Meta:          meta,
	}
	e.blockRemaining--
	e.positioned = true

	return e.term, nil
}

func (e *TermsEnum) readBytes() ([]byte, error) {
	length, err := e.in.ReadUvarint()
	if err != nil {
		return nil, e.corrupt(err)
	}

	value, err := e.in.ReadBytes(int(length))
	if err != nil {
		return nil, e.corrupt(err)
	}

	return value, nil
}

func (e *TermsEnum) SeekCeil(target []byte) (codec.SeekStatus, error) {
	offset, ok := e.fieldReader.indexReader.Seek(target)
	if !ok {
		// target sorts before the first term of the field.
		offset = e.fieldReader.start
	}

	if offset < e.fieldReader.start {
		return codec.SeekEnd, e.corrupt(errors.New("terms index points before the field"))
	}

	if err := e.in.Seek(int(offset)); err != nil {
		return codec.SeekEnd, e.corrupt(err)
	}

	e.blockRemaining = 0
	e.eof = false
	e.positioned = false
	e.term = e.term[:0]

	for {
		term, err := e.Next()
		if err != nil {
			return codec.SeekEnd, err
		}

		if e.eof {
			return codec.SeekEnd, nil
		}

		switch c := bytes.Compare(term, target); {
		case c == 0:
			return codec.SeekFound, nil
		case c > 0:
			return codec.SeekNotFound, nil
		}
	}
}

func (e *TermsEnum) Term() []byte {
	if !e.positioned {
		return nil
	}

	return e.term
}

func (e *TermsEnum) DocFreq() uint32 {
	return e.state.DocFreq
}

func (e *TermsEnum) TotalTermFreq() uint64 {
	return e.state.TotalTermFreq
}

func (e *TermsEnum) Postings() (codec.PostingsEnum, error) {
	if !e.positioned {
		return nil, errors.New("blockterms: terms enum is not positioned on a term")
	}

	state := e.state
	return e.fieldReader.postingsReader.Postings(e.fieldReader.field, &state)
}

func (e *TermsEnum) corrupt(err error) error {
	return codec.NewCorruptIndexError(e.fieldReader.file, "field %q: %v", e.fieldReader.field.Name, err)
}
