package blockterms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

type Reader struct {
	closed         bool
	fieldNames     []string
	fields         map[string]*FieldReader
	in             *store.Input
	indexReader    codec.TermIndexReader
	postingsReader codec.PostingsReader
}

// NewReader takes ownership of indexReader and postingsReader only when it
// succeeds.
func NewReader(indexReader codec.TermIndexReader, directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, postingsReader codec.PostingsReader, context store.IOContext, segmentSuffix string) (*Reader, error) {
	if indexReader == nil || postingsReader == nil {
		return nil, errors.New("blockterms: a term index reader and a postings reader are required")
	}

	if fieldInfos == nil {
		return nil, errors.New("blockterms: missing field infos")
	}

	in, err := directory.OpenInput(codec.SegmentFileName(segment.Name, segmentSuffix, Extension), context)
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		fields:         make(map[string]*FieldReader, fieldInfos.Len()),
		in:             in,
		indexReader:    indexReader,
		postingsReader: postingsReader,
	}

	if err := reader.load(fieldInfos, segment); err != nil {
		_ = in.Close()
		return nil, err
	}

	return reader, nil
}

func (r *Reader) load(fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo) error {
	name := r.in.Name()

	data, err := r.in.Slice(0, r.in.Len())
	if err != nil {
		return err
	}

	if _, err := codec.CheckHeader(store.NewDataInput(data), name, magic, versionStart, versionCurrent); err != nil {
		return err
	}

	if len(data) < codec.HeaderSize+8 {
		return codec.NewCorruptIndexError(name, "truncated file")
	}

	directoryOffset := binary.BigEndian.Uint64(data[len(data)-8:])
	if directoryOffset < codec.HeaderSize || directoryOffset > uint64(len(data)-8) {
		return codec.NewCorruptIndexError(name, "directory offset %d out of bounds", directoryOffset)
	}

	directory := store.NewDataInput(data[:len(data)-8])
	if err := directory.Seek(int(directoryOffset)); err != nil {
		return codec.NewCorruptIndexError(name, "%v", err)
	}

	numFields, err := directory.ReadUvarint()
	if err != nil {
		return codec.NewCorruptIndexError(name, "%v", err)
	}

	for i := uint64(0); i < numFields; i++ {
		var values [7]uint64
		for j := range values {
			value, err := directory.ReadUvarint()
			if err != nil {
				return codec.NewCorruptIndexError(name, "%v", err)
			}
			values[j] = value
		}

		number, numTerms, sumTotalTermFreq, sumDocFreq, docCount, start, end := values[0], values[1], values[2], values[3], values[4], values[5], values[6]

		field := fieldInfos.ByNumber(uint32(number))
		if field == nil {
			return codec.NewCorruptIndexError(name, "unknown field number %d", number)
		}

		if start < codec.HeaderSize || start > end || end > directoryOffset {
			return codec.NewCorruptIndexError(name, "field %q: blocks [%d:%d] out of bounds", field.Name, start, end)
		}

		if segment.DocCount > 0 && docCount > uint64(segment.DocCount) {
			return codec.NewCorruptIndexError(name, "field %q: doc count %d exceeds segment doc count %d", field.Name, docCount, segment.DocCount)
		}

		fieldIndexReader, err := r.indexReader.Field(field)
		if err != nil {
			if errors.Is(err, codec.ErrFieldNotFound) {
				return codec.NewCorruptIndexError(name, "field %q has no terms index", field.Name)
			}
			return err
		}

		r.fields[field.Name] = &FieldReader{
			data:             data[:end],
			docCount:         uint32(docCount),
			field:            field,
			file:             name,
			indexReader:      fieldIndexReader,
			numTerms:         numTerms,
			postingsReader:   r.postingsReader,
			start:            start,
			sumDocFreq:       sumDocFreq,
			sumTotalTermFreq: sumTotalTermFreq,
		}
		r.fieldNames = append(r.fieldNames, field.Name)
	}

	slices.Sort(r.fieldNames)

	return nil
}

func (r *Reader) Fields() []string {
	return slices.Clone(r.fieldNames)
}

func (r *Reader) Terms(field string) (codec.Terms, error) {
	fieldReader, exists := r.fields[field]
	if !exists {
		return nil, fmt.Errorf("%w: %q", codec.ErrFieldNotFound, field)
	}

	return fieldReader, nil
}

// Close closes the dictionary file, the term index reader and the postings
// reader, in that order. Calling it again is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	return codec.CloseAll(r.in, r.indexReader, r.postingsReader)
}

// FieldReader is immutable; every lookup creates its own TermsEnum.
type FieldReader struct {
	data             []byte
	docCount         uint32
	field            *codec.FieldInfo
	file             string
	indexReader      codec.FieldIndexReader
	numTerms         uint64
	postingsReader   codec.PostingsReader
	start            uint64
	sumDocFreq       uint64
	sumTotalTermFreq uint64
}

func (fr *FieldReader) Size() uint64 {
	return fr.numTerms
}

func (fr *FieldReader) DocCount() uint32 {
	return fr.docCount
}

func (fr *FieldReader) SumDocFreq() uint64 {
	return fr.sumDocFreq
}

func (fr *FieldReader) SumTotalTermFreq() uint64 {
	return fr.sumTotalTermFreq
}

func (fr *FieldReader) Postings(term []byte) (codec.PostingsEnum, error) {
	termsEnum := fr.newTermsEnum()

	status, err := termsEnum.SeekCeil(term)
	if err != nil {
		return nil, err
	}

	if status != codec.SeekFound {
		return nil, fmt.Errorf("%w: %s:%q", codec.ErrTermNotFound, fr.field.Name, term)
	}

	return termsEnum.Postings()
}

func (fr *FieldReader) Iterator() codec.TermsEnum {
	return fr.newTermsEnum()
}

func (fr *FieldReader) newTermsEnum() *TermsEnum {
	in := store.NewDataInput(fr.data)
	_ = in.Seek(int(fr.start))

	return &TermsEnum{
		fieldReader: fr,
		in:          in,
		term:        make([]byte, 0, 16),
	}
}
