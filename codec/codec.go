// Package codec defines the contracts shared by the pieces of a postings
// codec: the segment read and write states handed to a codec, the fields
// consumer and producer surfaces it exposes, and the collaborator interfaces
// (postings stream, term index) a terms dictionary is built from.
package codec

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/larose/tempblock/store"
)

type DocumentId uint32

// NoMoreDocs is returned by PostingsEnum once it is exhausted.
const NoMoreDocs = DocumentId(math.MaxUint32)

type IndexOptions int

const (
	IndexDocs IndexOptions = iota
	IndexDocsAndFreqs
	IndexDocsFreqsAndPositions
)

func (o IndexOptions) HasFreqs() bool {
	return o >= IndexDocsAndFreqs
}

func (o IndexOptions) HasPositions() bool {
	return o >= IndexDocsFreqsAndPositions
}

type FieldInfo struct {
	Name         string       `json:"name"`
	Number       uint32       `json:"number"`
	IndexOptions IndexOptions `json:"indexOptions"`
}

type FieldInfos struct {
	byName   map[string]*FieldInfo
	byNumber map[uint32]*FieldInfo
	fields   []*FieldInfo
}

func NewFieldInfos(fields []*FieldInfo) (*FieldInfos, error) {
	infos := &FieldInfos{
		byName:   make(map[string]*FieldInfo, len(fields)),
		byNumber: make(map[uint32]*FieldInfo, len(fields)),
		fields:   make([]*FieldInfo, 0, len(fields)),
	}

	for _, field := range fields {
		if _, exists := infos.byName[field.Name]; exists {
			return nil, fmt.Errorf("duplicate field name %q", field.Name)
		}
		if _, exists := infos.byNumber[field.Number]; exists {
			return nil, fmt.Errorf("duplicate field number %d", field.Number)
		}

		infos.byName[field.Name] = field
		infos.byNumber[field.Number] = field
		infos.fields = append(infos.fields, field)
	}

	slices.SortFunc(infos.fields, func(a, b *FieldInfo) int {
		return cmp.Compare(a.Number, b.Number)
	})

	return infos, nil
}

func (infos *FieldInfos) ByName(name string) *FieldInfo {
	return infos.byName[name]
}

func (infos *FieldInfos) ByNumber(number uint32) *FieldInfo {
	return infos.byNumber[number]
}

// List returns the fields ordered by number.
func (infos *FieldInfos) List() []*FieldInfo {
	return infos.fields
}

func (infos *FieldInfos) Len() int {
	return len(infos.fields)
}

type SegmentInfo struct {
	Name     string
	DocCount uint32
}

type SegmentWriteState struct {
	Directory  store.Directory
	Segment    *SegmentInfo
	FieldInfos *FieldInfos
	// SegmentSuffix disambiguates several postings formats in one segment.
	SegmentSuffix string
	Context       store.IOContext
}

type SegmentReadState struct {
	Directory     store.Directory
	Segment       *SegmentInfo
	FieldInfos    *FieldInfos
	SegmentSuffix string
	Context       store.IOContext
}

// SegmentFileName builds "segment.<name>[.<suffix>].<ext>".
func SegmentFileName(segmentName, segmentSuffix, extension string) string {
	if segmentSuffix == "" {
		return "segment." + segmentName + "." + extension
	}

	return "segment." + segmentName + "." + segmentSuffix + "." + extension
}

type TermComparator func(a, b []byte) int

// UnsignedByteOrder compares terms as unsigned bytes, which for UTF-8 is
// the same as comparing by code point. Every file of the format is sorted
// this way.
var UnsignedByteOrder TermComparator = bytes.Compare

type TermStats struct {
	DocFreq       uint32
	TotalTermFreq uint64
}

// TermState is what the terms dictionary remembers about a term. Meta is
// owned by the postings stream and is opaque to the dictionary.
type TermState struct {
	DocFreq       uint32
	TotalTermFreq uint64
	Meta          []byte
}
