package index

import (
	"fmt"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/codec/tempblock"
	"github.com/larose/tempblock/store"
)

// SegmentReader is immutable once opened and safe for concurrent lookups.
type SegmentReader struct {
	Ordinal uint32
	Info    *SegmentCommit

	fieldInfos   *codec.FieldInfos
	fields       codec.FieldsProducer
	storedFields *StoredFieldsReader
}

func openSegmentReader(directory store.Directory, format *tempblock.PostingsFormat, ordinal uint32, segmentCommit *SegmentCommit) (*SegmentReader, error) {
	if segmentCommit.Suffix != format.Name() {
		return nil, fmt.Errorf("segment %s: unknown postings format %q", segmentCommit.Name, segmentCommit.Suffix)
	}

	fieldInfos, err := codec.NewFieldInfos(segmentCommit.Fields)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", segmentCommit.Name, err)
	}

	state := &codec.SegmentReadState{
		Directory:     directory,
		Segment:       &codec.SegmentInfo{Name: segmentCommit.Name, DocCount: segmentCommit.DocCount},
		FieldInfos:    fieldInfos,
		SegmentSuffix: segmentCommit.Suffix,
		Context:       store.IOContextRead,
	}

	var assembly codec.Assembly

	fields, err := codec.Acquire(&assembly, "postings", func() (codec.FieldsProducer, error) {
		return format.FieldsProducer(state)
	})
	if err != nil {
		return nil, err
	}

	storedFields, err := codec.Acquire(&assembly, "stored fields", func() (*StoredFieldsReader, error) {
		return NewStoredFieldsReader(directory, segmentCommit.Name, segmentCommit.StoredFields, store.IOContextRead)
	})
	if err != nil {
		return nil, err
	}

	assembly.Release()

	return &SegmentReader{
		Ordinal:      ordinal,
		Info:         segmentCommit,
		fieldInfos:   fieldInfos,
		fields:       fields,
		storedFields: storedFields,
	}, nil
}

func (r *SegmentReader) Terms(field string) (codec.Terms, error) {
	return r.fields.Terms(field)
}

// StoredValue returns nil when the field is unknown or the doc has no stored
// value for it.
func (r *SegmentReader) StoredValue(field string, docId codec.DocumentId) ([]byte, error) {
	fieldInfo := r.fieldInfos.ByName(field)
	if fieldInfo == nil {
		return nil, nil
	}

	return r.storedFields.Value(fieldInfo.Number, docId)
}

func (r *SegmentReader) Close() error {
	return codec.CloseAll(r.storedFields, r.fields)
}
