package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/codec/tempblock"
	"github.com/larose/tempblock/store"
)

type Hit struct {
	DocId     uint64   `json:"docId"`
	Freq      uint32   `json:"freq"`
	Positions []uint32 `json:"positions,omitempty"`
}

type TermCount struct {
	Term    string `json:"term"`
	DocFreq uint64 `json:"docFreq"`
}

// IndexReader is a point-in-time view of the committed segments. It is safe
// for concurrent use until Close.
type IndexReader struct {
	Generation     uint64
	SegmentReaders []*SegmentReader
}

// NewIndexReader opens every committed segment. If a segment fails to open,
// the ones opened before it are closed.
func NewIndexReader(directory *store.FSDirectory, format *tempblock.PostingsFormat) (*IndexReader, error) {
	commit, err := readCommit(directory.Path())
	if err != nil {
		return nil, err
	}

	var assembly codec.Assembly

	segmentReaders := make([]*SegmentReader, 0, len(commit.Segments))

	for ordinal, segmentCommit := range commit.Segments {
		segmentReader, err := codec.Acquire(&assembly, "segment "+segmentCommit.Name, func() (*SegmentReader, error) {
			return openSegmentReader(directory, format, uint32(ordinal), segmentCommit)
		})
		if err != nil {
			return nil, err
		}

		segmentReaders = append(segmentReaders, segmentReader)
	}

	assembly.Release()

	return &IndexReader{
		Generation:     commit.Generation,
		SegmentReaders: segmentReaders,
	}, nil
}

func (r *IndexReader) NumDocs() uint64 {
	var numDocs uint64
	for _, segmentReader := range r.SegmentReaders {
		numDocs += uint64(segmentReader.Info.DocCount)
	}
	return numDocs
}

// forEachPostings calls fn with the postings of term in every segment that
// has it.
func (r *IndexReader) forEachPostings(field string, term []byte, fn func(segmentReader *SegmentReader, postingsEnum codec.PostingsEnum) error) error {
	for _, segmentReader := range r.SegmentReaders {
		terms, err := segmentReader.Terms(field)
		if errors.Is(err, codec.ErrFieldNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		postingsEnum, err := terms.Postings(term)
		if errors.Is(err, codec.ErrTermNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		if err := fn(segmentReader, postingsEnum); err != nil {
			return err
		}
	}

	return nil
}

// Search returns the global ids of the docs containing term.
func (r *IndexReader) Search(field string, term []byte) (*roaring64.Bitmap, error) {
	docIds := roaring64.NewBitmap()

	err := r.forEachPostings(field, term, func(segmentReader *SegmentReader, postingsEnum codec.PostingsEnum) error {
		for {
			docId, err := postingsEnum.NextDoc()
			if err != nil {
				return err
			}
			if docId == codec.NoMoreDocs {
				return nil
			}

			docIds.Add(ToGlobalDocId(segmentReader.Ordinal, uint32(docId)))
		}
	})
	if err != nil {
		return nil, err
	}

	return docIds, nil
}

// Postings returns every hit of term, ordered by global doc id. Positions
// are only filled for fields indexed with positions.
func (r *IndexReader) Postings(field string, term []byte) ([]Hit, error) {
	var hits []Hit

	err := r.forEachPostings(field, term, func(segmentReader *SegmentReader, postingsEnum codec.PostingsEnum) error {
		for {
			docId, err := postingsEnum.NextDoc()
			if err != nil {
				return err
			}
			if docId == codec.NoMoreDocs {
				return nil
			}

			hit := Hit{
				DocId: ToGlobalDocId(segmentReader.Ordinal, uint32(docId)),
				Freq:  postingsEnum.Freq(),
			}

			for {
				position, err := postingsEnum.NextPosition()
				if errors.Is(err, io.EOF) || errors.Is(err, codec.ErrPositionsNotIndexed) {
					break
				}
				if err != nil {
					return err
				}
				hit.Positions = append(hit.Positions, position)
			}

			hits = append(hits, hit)
		}
	})
	if err != nil {
		return nil, err
	}

	return hits, nil
}

// Terms lists the terms of field starting with prefix, in unsigned byte
// order, with their doc freq summed over all segments. limit <= 0 means no
// limit.
func (r *IndexReader) Terms(field string, prefix []byte, limit int) ([]TermCount, error) {
	docFreqs := make(map[string]uint64)

	for _, segmentReader := range r.SegmentReaders {
		terms, err := segmentReader.Terms(field)
		if errors.Is(err, codec.ErrFieldNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		termsEnum := terms.Iterator()

		status, err := termsEnum.SeekCeil(prefix)
		if err != nil {
			return nil, err
		}

		// Terms come in order, so the first limit terms of each segment
		// cover the first limit terms of the merge.
		term := termsEnum.Term()
		for seen := 0; status != codec.SeekEnd && term != nil && bytes.HasPrefix(term, prefix); seen++ {
			if limit > 0 && seen == limit {
				break
			}

			docFreqs[string(term)] += uint64(termsEnum.DocFreq())

			term, err = termsEnum.Next()
			if err != nil {
				return nil, err
			}
		}
	}

	termCounts := make([]TermCount, 0, len(docFreqs))
	for term, docFreq := range docFreqs {
		termCounts = append(termCounts, TermCount{Term: term, DocFreq: docFreq})
	}

	slices.SortFunc(termCounts, func(a, b TermCount) int {
		return codec.UnsignedByteOrder([]byte(a.Term), []byte(b.Term))
	})

	if limit > 0 && len(termCounts) > limit {
		termCounts = termCounts[:limit]
	}

	return termCounts, nil
}

func (r *IndexReader) StoredValue(field string, docId uint64) ([]byte, error) {
	ordinal := ToSegmentOrdinal(docId)
	if int(ordinal) >= len(r.SegmentReaders) {
		return nil, fmt.Errorf("doc %d: no segment %d", docId, ordinal)
	}

	return r.SegmentReaders[ordinal].StoredValue(field, toLocalDocId(docId))
}

func (r *IndexReader) Close() error {
	closers := make([]io.Closer, len(r.SegmentReaders))
	for i, segmentReader := range r.SegmentReaders {
		closers[i] = segmentReader
	}

	return codec.CloseAll(closers...)
}
