package index

import "github.com/larose/tempblock/codec"

type FieldType int

const (
	// TextFieldType is tokenized and indexed with positions.
	TextFieldType FieldType = iota
	// ByteFieldType is indexed as a single term, without positions.
	ByteFieldType
)

func (t FieldType) IndexOptions() codec.IndexOptions {
	if t == ByteFieldType {
		return codec.IndexDocsAndFreqs
	}
	return codec.IndexDocsFreqsAndPositions
}

type Field struct {
	FieldType FieldType
	Name      string
	Value     []byte
	// Stored keeps the raw value so it can be returned with hits.
	Stored bool
}

type Document []Field
