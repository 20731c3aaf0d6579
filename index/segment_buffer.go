package index

import (
	"fmt"
	"slices"

	"github.com/larose/tempblock/codec"
)

type posting struct {
	docId    codec.DocumentId
	position uint32
}

// SegmentBuffer accumulates the postings of one segment in memory.
//
// Caller calls in order:
// - Doc()
// - Field()
// - Term()
// - Term()
// - ...
// - Field()
// - ...
// - Doc()
// - ...
// - Flush()
type SegmentBuffer struct {
	docId    codec.DocumentId
	numDocs  uint32
	fieldIdx int

	// next position of each field within the current doc
	positions map[int]uint32

	fieldIdxs map[string]int
	fields    []*codec.FieldInfo
	// postings[fieldIdx][term]
	postings []map[string][]posting
}

func NewSegmentBuffer() *SegmentBuffer {
	return &SegmentBuffer{
		positions: make(map[int]uint32),
		fieldIdxs: make(map[string]int),
		fields:    make([]*codec.FieldInfo, 0, 5),
		postings:  make([]map[string][]posting, 0, 5),
	}
}

func (b *SegmentBuffer) Doc(docId codec.DocumentId) error {
	if b.numDocs > 0 && docId <= b.docId {
		return fmt.Errorf("doc ids out of order (%d after %d)", docId, b.docId)
	}

	b.docId = docId
	b.numDocs++
	clear(b.positions)

	return nil
}

// Field starts a field of the current doc. A field seen twice in the same doc
// keeps counting positions where the previous value stopped.
func (b *SegmentBuffer) Field(name string, indexOptions codec.IndexOptions) (*codec.FieldInfo, error) {
	fieldIdx, exists := b.fieldIdxs[name]
	if !exists {
		fieldIdx = len(b.fields)
		b.fieldIdxs[name] = fieldIdx
		b.fields = append(b.fields, &codec.FieldInfo{
			Name:         name,
			Number:       uint32(fieldIdx),
			IndexOptions: indexOptions,
		})
		b.postings = append(b.postings, make(map[string][]posting))
	} else if b.fields[fieldIdx].IndexOptions != indexOptions {
		return nil, fmt.Errorf("field %q indexed with conflicting options", name)
	}

	b.fieldIdx = fieldIdx

	return b.fields[fieldIdx], nil
}

func (b *SegmentBuffer) Term(term []byte) {
	position := b.positions[b.fieldIdx]

	fieldPostings := b.postings[b.fieldIdx]
	fieldPostings[string(term)] = append(fieldPostings[string(term)], posting{
		docId:    b.docId,
		position: position,
	})

	b.positions[b.fieldIdx] = position + 1
}

func (b *SegmentBuffer) NumDocs() uint32 {
	return b.numDocs
}

func (b *SegmentBuffer) FieldInfos() (*codec.FieldInfos, error) {
	return codec.NewFieldInfos(b.fields)
}

// Flush streams every field, in number order, into consumer. Terms are sorted
// by unsigned byte order. The caller closes consumer.
func (b *SegmentBuffer) Flush(consumer codec.FieldsConsumer) error {
	var termsConsumer codec.TermsConsumer
	var postingsConsumer codec.PostingsConsumer
	var stats codec.TermStats

	var docId codec.DocumentId
	var docPositions []uint32

	endDoc := func() error {
		if err := postingsConsumer.StartDoc(docId, uint32(len(docPositions))); err != nil {
			return err
		}

		for _, position := range docPositions {
			if err := postingsConsumer.AddPosition(position); err != nil {
				return err
			}
		}

		stats.DocFreq++
		stats.TotalTermFreq += uint64(len(docPositions))

		return postingsConsumer.FinishDoc()
	}

	for fieldIdx, fieldPostings := range b.postings {
		var err error
		termsConsumer, err = consumer.AddField(b.fields[fieldIdx])
		if err != nil {
			return err
		}

		sortedTerms := make([]string, 0, len(fieldPostings))
		for term := range fieldPostings {
			sortedTerms = append(sortedTerms, term)
		}
		slices.Sort(sortedTerms)

		for _, term := range sortedTerms {
			termPostings := fieldPostings[term]

			postingsConsumer, err = termsConsumer.StartTerm([]byte(term))
			if err != nil {
				return err
			}

			stats = codec.TermStats{}
			docId = termPostings[0].docId
			docPositions = docPositions[:0]

			for _, p := range termPostings {
				if p.docId != docId {
					if err := endDoc(); err != nil {
						return err
					}

					docId = p.docId
					docPositions = docPositions[:0]
				}

				docPositions = append(docPositions, p.position)
			}

			if err := endDoc(); err != nil {
				return err
			}

			if err := termsConsumer.FinishTerm([]byte(term), stats); err != nil {
				return err
			}
		}

		if err := termsConsumer.Finish(); err != nil {
			return err
		}
	}

	return nil
}
