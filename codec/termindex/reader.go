package termindex

import (
	"encoding/binary"
	"sort"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

type Reader struct {
	fields   map[uint32]*FieldReader
	in       *store.Input
	interval int
}

// NewReader loads the sampled terms of every field in memory. The terms
// must be strictly increasing under comparator or the file is reported as
// corrupt.
func NewReader(directory store.Directory, fieldInfos *codec.FieldInfos, segmentName string, comparator codec.TermComparator, segmentSuffix string, context store.IOContext) (*Reader, error) {
	name := codec.SegmentFileName(segmentName, segmentSuffix, Extension)

	in, err := directory.OpenInput(name, context)
	if err != nil {
		return nil, err
	}

	reader, err := load(in, fieldInfos, comparator)
	if err != nil {
		_ = in.Close()
		return nil, err
	}

	return reader, nil
}

func load(in *store.Input, fieldInfos *codec.FieldInfos, comparator codec.TermComparator) (*Reader, error) {
	name := in.Name()

	data, err := in.Slice(0, in.Len())
	if err != nil {
		return nil, err
	}

	dataInput := store.NewDataInput(data)

	if _, err := codec.CheckHeader(dataInput, name, magic, versionStart, versionCurrent); err != nil {
		return nil, err
	}

	interval, err := dataInput.ReadUint32()
	if err != nil || interval < 1 {
		return nil, codec.NewCorruptIndexError(name, "bad interval")
	}

	if len(data) < codec.HeaderSize+4+8 {
		return nil, codec.NewCorruptIndexError(name, "truncated file")
	}

	directoryOffset := binary.BigEndian.Uint64(data[len(data)-8:])
	if directoryOffset > uint64(len(data)-8) {
		return nil, codec.NewCorruptIndexError(name, "directory offset %d out of bounds", directoryOffset)
	}

	directory := store.NewDataInput(data[:len(data)-8])
	if err := directory.Seek(int(directoryOffset)); err != nil {
		return nil, codec.NewCorruptIndexError(name, "%v", err)
	}

	numFields, err := directory.ReadUvarint()
	if err != nil {
		return nil, codec.NewCorruptIndexError(name, "%v", err)
	}

	reader := &Reader{
		fields:   make(map[uint32]*FieldReader, numFields),
		in:       in,
		interval: int(interval),
	}

	for i := uint64(0); i < numFields; i++ {
		number, err := directory.ReadUvarint()
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		numEntries, err := directory.ReadUvarint()
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		offsetsStart, err := directory.ReadUint64()
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		termsEnd, err := directory.ReadUvarint()
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		field := fieldInfos.ByNumber(uint32(number))
		if field == nil {
			return nil, codec.NewCorruptIndexError(name, "unknown field number %d", number)
		}

		fieldReader, err := loadField(name, data, field, numEntries, offsetsStart, termsEnd, comparator)
		if err != nil {
			return nil, err
		}

		reader.fields[field.Number] = fieldReader
	}

	return reader, nil
}

func loadField(name string, data []byte, field *codec.FieldInfo, numEntries, offsetsStart, termsEnd uint64, comparator codec.TermComparator) (*FieldReader, error) {
	if offsetsStart > uint64(len(data)) || numEntries > (uint64(len(data))-offsetsStart)/8 {
		return nil, codec.NewCorruptIndexError(name, "field %q: entry offsets out of bounds", field.Name)
	}

	fieldReader := &FieldReader{
		comparator:        comparator,
		terms:             make([][]byte, numEntries),
		termsFilePointers: make([]uint64, numEntries),
	}

	entry := store.NewDataInput(data)

	for i := uint64(0); i < numEntries; i++ {
		offset := binary.BigEndian.Uint64(data[offsetsStart+i*8:])
		if offset >= offsetsStart {
			return nil, codec.NewCorruptIndexError(name, "field %q: entry %d offset out of bounds", field.Name, i)
		}

		if err := entry.Seek(int(offset)); err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		termLength, err := entry.ReadUvarint()
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		term, err := entry.ReadBytes(int(termLength))
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		termsFilePointer, err := entry.ReadUvarint()
		if err != nil {
			return nil, codec.NewCorruptIndexError(name, "%v", err)
		}

		if termsFilePointer >= termsEnd {
			return nil, codec.NewCorruptIndexError(name, "field %q: entry %d points past the end of the field", field.Name, i)
		}

		if i > 0 && comparator(fieldReader.terms[i-1], term) >= 0 {
			return nil, codec.NewCorruptIndexError(name, "field %q: index terms out of order at entry %d", field.Name, i)
		}

		fieldReader.terms[i] = term
		fieldReader.termsFilePointers[i] = termsFilePointer
	}

	return fieldReader, nil
}

func (r *Reader) Field(field *codec.FieldInfo) (codec.FieldIndexReader, error) {
	fieldReader, exists := r.fields[field.Number]
	if !exists {
		return nil, codec.ErrFieldNotFound
	}

	return fieldReader, nil
}

func (r *Reader) Interval() int {
	return r.interval
}

func (r *Reader) Close() error {
	return r.in.Close()
}

// FieldReader holds the sampled terms of one field. Terms point into the
// mapped file and are read-only.
type FieldReader struct {
	comparator        codec.TermComparator
	terms             [][]byte
	termsFilePointers []uint64
}

func (fr *FieldReader) Seek(term []byte) (uint64, bool) {
	// Index of the first indexed term > term.
	index := sort.Search(len(fr.terms), func(i int) bool {
		return fr.comparator(fr.terms[i], term) > 0
	})

	if index == 0 {
		return 0, false
	}

	return fr.termsFilePointers[index-1], true
}

func (fr *FieldReader) NumIndexTerms() int {
	return len(fr.terms)
}
