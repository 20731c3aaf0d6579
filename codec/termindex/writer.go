// Package termindex implements a fixed-gap terms index: every interval-th
// term of each field is recorded with the offset of its block in the terms
// dictionary, so a lookup can binary search the sampled terms and scan a
// single block.
package termindex

import (
	"bytes"
	"fmt"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

const (
	Extension = "tii"

	DefaultInterval = 32

	magic          uint32 = 0x54544949
	versionStart   uint32 = 1
	versionCurrent        = versionStart
)

/*
File:
  - Header (magic, version)
  - Interval (uint32)
  - For each field:
	- Entries: term length (uvarint), term, dictionary offset (uvarint)
	- Entry offsets (uint64 each)
  - Directory:
	- num fields (uvarint)
	- for each field: number (uvarint), num entries (uvarint), entry offsets start (uint64),
	  end of the field in the dictionary (uvarint)
  - Footer: directory offset (uint64)
*/

type fieldMeta struct {
	number       uint32
	numEntries   uint64
	offsetsStart uint64
	termsEnd     uint64
}

type Writer struct {
	closed   bool
	fields   []fieldMeta
	interval int
	out      *store.Output
}

func NewWriter(state *codec.SegmentWriteState, interval int) (*Writer, error) {
	if interval < 1 {
		return nil, fmt.Errorf("%w: %d", codec.ErrInvalidInterval, interval)
	}

	out, err := state.Directory.CreateOutput(codec.SegmentFileName(state.Segment.Name, state.SegmentSuffix, Extension), state.Context)
	if err != nil {
		return nil, err
	}

	if err := codec.WriteHeader(out, magic, versionCurrent); err != nil {
		_ = out.Close()
		return nil, err
	}

	if err := out.WriteUint32(uint32(interval)); err != nil {
		_ = out.Close()
		return nil, err
	}

	return &Writer{
		fields:   make([]fieldMeta, 0, state.FieldInfos.Len()),
		interval: interval,
		out:      out,
	}, nil
}

func (w *Writer) Interval() int {
	return w.interval
}

func (w *Writer) AddField(field *codec.FieldInfo) (codec.FieldIndexWriter, error) {
	if w.closed {
		return nil, fmt.Errorf("termindex: writer is closed")
	}

	return &FieldWriter{
		entryOffsets: make([]uint64, 0, 64),
		field:        field,
		writer:       w,
	}, nil
}

// Close writes the field directory and closes the file. Calling it again
// is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	directoryOffset := w.out.Offset()

	if err := w.writeDirectory(); err != nil {
		_ = w.out.Close()
		return err
	}

	if err := w.out.WriteUint64(directoryOffset); err != nil {
		_ = w.out.Close()
		return err
	}

	return w.out.Close()
}

func (w *Writer) writeDirectory() error {
	if err := w.out.WriteUvarint(uint64(len(w.fields))); err != nil {
		return err
	}

	for _, field := range w.fields {
		if err := w.out.WriteUvarint(uint64(field.number)); err != nil {
			return err
		}

		if err := w.out.WriteUvarint(field.numEntries); err != nil {
			return err
		}

		if err := w.out.WriteUint64(field.offsetsStart); err != nil {
			return err
		}

		if err := w.out.WriteUvarint(field.termsEnd); err != nil {
			return err
		}
	}

	return nil
}

type FieldWriter struct {
	entryOffsets []uint64
	field        *codec.FieldInfo
	lastTerm     []byte
	numTerms     int
	writer       *Writer
}

func (fw *FieldWriter) CheckIndexTerm(term []byte, stats codec.TermStats) bool {
	indexed := fw.numTerms%fw.writer.interval == 0
	fw.numTerms++
	return indexed
}

func (fw *FieldWriter) Add(term []byte, termsFilePointer uint64) error {
	if len(fw.entryOffsets) > 0 && bytes.Compare(term, fw.lastTerm) <= 0 {
		return fmt.Errorf("%w: field %q: %q after %q", codec.ErrTermOrder, fw.field.Name, term, fw.lastTerm)
	}

	out := fw.writer.out
	fw.entryOffsets = append(fw.entryOffsets, out.Offset())

	if err := out.WriteUvarint(uint64(len(term))); err != nil {
		return err
	}

	if _, err := out.Write(term); err != nil {
		return err
	}

	if err := out.WriteUvarint(termsFilePointer); err != nil {
		return err
	}

	fw.lastTerm = append(fw.lastTerm[:0], term...)

	return nil
}

// Finish writes the entry offsets of the field. termsFilePointer is the end
// of the field in the terms dictionary; every indexed pointer is before it.
func (fw *FieldWriter) Finish(termsFilePointer uint64) error {
	out := fw.writer.out
	offsetsStart := out.Offset()

	for _, offset := range fw.entryOffsets {
		if err := out.WriteUint64(offset); err != nil {
			return err
		}
	}

	fw.writer.fields = append(fw.writer.fields, fieldMeta{
		number:       fw.field.Number,
		numEntries:   uint64(len(fw.entryOffsets)),
		offsetsStart: offsetsStart,
		termsEnd:     termsFilePointer,
	})

	return nil
}
