// Package blockterms implements a terms dictionary that stores the terms of
// each field in prefix-coded blocks. A block starts at every term chosen by
// the terms index, so a lookup seeks with the index and scans one block.
// Per-term postings metadata is produced and decoded by the postings
// stream; the dictionary stores it verbatim.
package blockterms

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

const (
	Extension = "tib"

	magic          uint32 = 0x54544942
	versionStart   uint32 = 1
	versionCurrent        = versionStart
)

/*
File:
  - Header (magic, version)
  - For each field, blocks:
	- num terms (uvarint)
	- for each term:
		- shared prefix length with the previous term of the block (uvarint)
		- suffix length (uvarint), suffix
		- doc freq (uvarint)
		- total term freq (uvarint)
		- metadata length (uvarint), metadata
  - Directory:
	- num fields (uvarint)
	- for each field: number, num terms, sum total term freq, sum doc freq,
	  doc count, blocks start, blocks end (uvarint each)
  - Footer: directory offset (uint64)
*/

type fieldSummary struct {
	number           uint32
	numTerms         uint64
	sumTotalTermFreq uint64
	sumDocFreq       uint64
	docCount         uint32
	start            uint64
	end              uint64
}

type Writer struct {
	closed         bool
	fieldInfos     *codec.FieldInfos
	fields         []fieldSummary
	indexWriter    codec.TermIndexWriter
	out            *store.Output
	postingsWriter codec.PostingsWriter
	seenFields     map[uint32]bool
}

// NewWriter takes ownership of indexWriter and postingsWriter only when it
// succeeds.
func NewWriter(indexWriter codec.TermIndexWriter, state *codec.SegmentWriteState, postingsWriter codec.PostingsWriter) (*Writer, error) {
	if indexWriter == nil || postingsWriter == nil {
		return nil, errors.New("blockterms: a term index writer and a postings writer are required")
	}

	if state.FieldInfos == nil {
		return nil, errors.New("blockterms: missing field infos")
	}

	out, err := state.Directory.CreateOutput(codec.SegmentFileName(state.Segment.Name, state.SegmentSuffix, Extension), state.Context)
	if err != nil {
		return nil, err
	}

	if err := codec.WriteHeader(out, magic, versionCurrent); err != nil {
		_ = out.Close()
		return nil, err
	}

	return &Writer{
		fieldInfos:     state.FieldInfos,
		fields:         make([]fieldSummary, 0, state.FieldInfos.Len()),
		indexWriter:    indexWriter,
		out:            out,
		postingsWriter: postingsWriter,
		seenFields:     make(map[uint32]bool, state.FieldInfos.Len()),
	}, nil
}

func (w *Writer) AddField(field *codec.FieldInfo) (codec.TermsConsumer, error) {
	if w.closed {
		return nil, errors.New("blockterms: writer is closed")
	}

	if w.fieldInfos.ByNumber(field.Number) == nil {
		return nil, fmt.Errorf("blockterms: unknown field %q", field.Name)
	}

	if w.seenFields[field.Number] {
		return nil, fmt.Errorf("blockterms: field %q added twice", field.Name)
	}
	w.seenFields[field.Number] = true

	fieldIndexWriter, err := w.indexWriter.AddField(field)
	if err != nil {
		return nil, err
	}

	w.postingsWriter.SetField(field)

	return &TermsWriter{
		docIds:           roaring.NewBitmap(),
		field:            field,
		fieldIndexWriter: fieldIndexWriter,
		start:            w.out.Offset(),
		writer:           w,
	}, nil
}

// Close writes the field directory, then closes the dictionary file, the
// term index writer and the postings writer, in that order. Every close is
// attempted. Calling it again is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error

	if err := w.writeDirectory(); err != nil {
		errs = append(errs, err)
	}

	if err := codec.CloseAll(w.out, w.indexWriter, w.postingsWriter); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (w *Writer) writeDirectory() error {
	directoryOffset := w.out.Offset()

	if err := w.out.WriteUvarint(uint64(len(w.fields))); err != nil {
		return err
	}

	for _, field := range w.fields {
		values := []uint64{
			uint64(field.number),
			field.numTerms,
			field.sumTotalTermFreq,
			field.sumDocFreq,
			uint64(field.docCount),
			field.start,
			field.end,
		}

		for _, value := range values {
			if err := w.out.WriteUvarint(value); err != nil {
				return err
			}
		}
	}

	return w.out.WriteUint64(directoryOffset)
}

type pendingTerm struct {
	term  []byte
	state codec.TermState
}

type TermsWriter struct {
	currentTerm      []byte
	docIds           *roaring.Bitmap
	field            *codec.FieldInfo
	fieldIndexWriter codec.FieldIndexWriter
	finished         bool
	numTerms         uint64
	pending          []pendingTerm
	start            uint64
	sumDocFreq       uint64
	sumTotalTermFreq uint64
	writer           *Writer
}

func (tw *TermsWriter) StartTerm(term []byte) (codec.PostingsConsumer, error) {
	if tw.finished {
		return nil, fmt.Errorf("blockterms: field %q is finished", tw.field.Name)
	}

	if tw.numTerms > 0 && bytes.Compare(term, tw.currentTerm) <= 0 {
		return nil, fmt.Errorf("%w: field %q: %q after %q", codec.ErrTermOrder, tw.field.Name, term, tw.currentTerm)
	}

	if err := tw.writer.postingsWriter.StartTerm(); err != nil {
		return nil, err
	}

	tw.currentTerm = append(tw.currentTerm[:0], term...)

	return &docTracker{PostingsConsumer: tw.writer.postingsWriter, docIds: tw.docIds}, nil
}

func (tw *TermsWriter) FinishTerm(term []byte, stats codec.TermStats) error {
	if !bytes.Equal(term, tw.currentTerm) {
		return fmt.Errorf("blockterms: FinishTerm(%q) does not match StartTerm(%q)", term, tw.currentTerm)
	}

	meta, err := tw.writer.postingsWriter.FinishTerm(stats)
	if err != nil {
		return err
	}

	if tw.fieldIndexWriter.CheckIndexTerm(term, stats) {
		if len(tw.pending) > 0 {
			if err := tw.flushBlock(); err != nil {
				return err
			}
		}

		if err := tw.fieldIndexWriter.Add(term, tw.writer.out.Offset()); err != nil {
			return err
		}
	}

	tw.pending = append(tw.pending, pendingTerm{
		term: bytes.Clone(term),
		state: codec.TermState{
			DocFreq:       stats.DocFreq,
			TotalTermFreq: stats.TotalTermFreq,
			Meta:          meta,
		},
	})

	tw.numTerms++
	tw.sumDocFreq += uint64(stats.DocFreq)
	tw.sumTotalTermFreq += stats.TotalTermFreq

	return nil
}

func (tw *TermsWriter) Finish() error {
	if tw.finished {
		return nil
	}
	tw.finished = true

	if len(tw.pending) > 0 {
		if err := tw.flushBlock(); err != nil {
			return err
		}
	}

	end := tw.writer.out.Offset()

	if err := tw.fieldIndexWriter.Finish(end); err != nil {
		return err
	}

	if tw.numTerms == 0 {
		return nil
	}

	tw.writer.fields = append(tw.writer.fields, fieldSummary{
		number:           tw.field.Number,
		numTerms:         tw.numTerms,
		sumTotalTermFreq: tw.sumTotalTermFreq,
		sumDocFreq:       tw.sumDocFreq,
		docCount:         uint32(tw.docIds.GetCardinality()),
		start:            tw.start,
		end:              end,
	})

	return nil
}

func (tw *TermsWriter) flushBlock() error {
	out := tw.writer.out

	if err := out.WriteUvarint(uint64(len(tw.pending))); err != nil {
		return err
	}

	var previous []byte
	for _, pending := range tw.pending {
		prefix := commonPrefix(previous, pending.term)
		suffix := pending.term[prefix:]

		values := []uint64{uint64(prefix), uint64(len(suffix))}
		for _, value := range values {
			if err := out.WriteUvarint(value); err != nil {
				return err
			}
		}

		if _, err := out.Write(suffix); err != nil {
			return err
		}

		values = []uint64{uint64(pending.state.DocFreq), pending.state.TotalTermFreq, uint64(len(pending.state.Meta))}
		for _, value := range values {
			if err := out.WriteUvarint(value); err != nil {
				return err
			}
		}

		if _, err := out.Write(pending.state.Meta); err != nil {
			return err
		}

		previous = pending.term
	}

	tw.pending = tw.pending[:0]

	return nil
}

func commonPrefix(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// docTracker records the doc ids of a field on their way to the postings
// writer.
type docTracker struct {
	codec.PostingsConsumer
	docIds *roaring.Bitmap
}

func (t *docTracker) StartDoc(docId codec.DocumentId, freq uint32) error {
	if err := t.PostingsConsumer.StartDoc(docId, freq); err != nil {
		return err
	}

	t.docIds.Add(uint32(docId))
	return nil
}
