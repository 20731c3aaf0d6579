package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"strconv"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
	"github.com/larose/tempblock/utils"
)

const (
	StoredDataExtension  = "fdt"
	StoredIndexExtension = "fdx"
)

func storedFieldSuffix(fieldNumber uint32) string {
	return "stored" + strconv.FormatUint(uint64(fieldNumber), 10)
}

type StoredFieldsWriter struct {
	currentDocId codec.DocumentId
	// values[fieldNumber][docId]
	values map[uint32]map[codec.DocumentId][]byte
}

func NewStoredFieldsWriter() *StoredFieldsWriter {
	return &StoredFieldsWriter{
		values: make(map[uint32]map[codec.DocumentId][]byte, 10),
	}
}

func (w *StoredFieldsWriter) Doc(docId codec.DocumentId) {
	w.currentDocId = docId
}

// Field keeps the last value when a field is stored twice in a doc.
func (w *StoredFieldsWriter) Field(fieldNumber uint32, value []byte) {
	fieldValues, exists := w.values[fieldNumber]
	if !exists {
		fieldValues = make(map[codec.DocumentId][]byte, 100)
		w.values[fieldNumber] = fieldValues
	}

	fieldValues[w.currentDocId] = value
}

// Fields returns the numbers of the stored fields, sorted.
func (w *StoredFieldsWriter) Fields() []uint32 {
	numbers := make([]uint32, 0, len(w.values))
	for number := range w.values {
		numbers = append(numbers, number)
	}
	slices.Sort(numbers)
	return numbers
}

func (w *StoredFieldsWriter) Write(directory store.Directory, segmentName string) error {
	for _, fieldNumber := range w.Fields() {
		values := w.values[fieldNumber]

		kvWriter, err := newKVStoreWriter(directory, segmentName, storedFieldSuffix(fieldNumber))
		if err != nil {
			return err
		}

		sortedDocIds := make([]codec.DocumentId, 0, len(values))
		for docId := range values {
			sortedDocIds = append(sortedDocIds, docId)
		}
		slices.Sort(sortedDocIds)

		for _, docId := range sortedDocIds {
			if err := kvWriter.Append(utils.Uint32ToBytes(uint32(docId)), values[docId]); err != nil {
				_ = kvWriter.Close()
				return err
			}
		}

		if err := kvWriter.Close(); err != nil {
			return err
		}
	}

	return nil
}

type StoredFieldsReader struct {
	fields map[uint32]*kvStoreReader
}

// NewStoredFieldsReader opens the stored values of every field in
// fieldNumbers. Nothing is left open when it fails.
func NewStoredFieldsReader(directory store.Directory, segmentName string, fieldNumbers []uint32, context store.IOContext) (*StoredFieldsReader, error) {
	reader := &StoredFieldsReader{
		fields: make(map[uint32]*kvStoreReader, len(fieldNumbers)),
	}

	for _, fieldNumber := range fieldNumbers {
		kvReader, err := newKVStoreReader(directory, segmentName, storedFieldSuffix(fieldNumber), context)
		if err != nil {
			return nil, errors.Join(err, reader.Close())
		}

		reader.fields[fieldNumber] = kvReader
	}

	return reader, nil
}

// Value returns nil when the doc has no value for the field.
func (r *StoredFieldsReader) Value(fieldNumber uint32, docId codec.DocumentId) ([]byte, error) {
	kvReader, exists := r.fields[fieldNumber]
	if !exists {
		return nil, nil
	}

	return kvReader.Get(utils.Uint32ToBytes(uint32(docId)))
}

func (r *StoredFieldsReader) Close() error {
	closers := make([]*kvStoreReader, 0, len(r.fields))
	for _, kvReader := range r.fields {
		closers = append(closers, kvReader)
	}

	var errs []error
	for _, kvReader := range closers {
		if err := kvReader.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

/*
Data file, for each entry:
  - key length (uint32)
  - value length (uint32)
  - key
  - value

Index file: offset of each entry in the data file (uint64)
*/
type kvStoreWriter struct {
	data  *store.Output
	index *store.Output
}

func newKVStoreWriter(directory store.Directory, segmentName, suffix string) (*kvStoreWriter, error) {
	data, err := directory.CreateOutput(codec.SegmentFileName(segmentName, suffix, StoredDataExtension), store.IOContextFlush)
	if err != nil {
		return nil, err
	}

	index, err := directory.CreateOutput(codec.SegmentFileName(segmentName, suffix, StoredIndexExtension), store.IOContextFlush)
	if err != nil {
		_ = data.Close()
		return nil, err
	}

	return &kvStoreWriter{data: data, index: index}, nil
}

// Caller is responsible to append keys in order
func (w *kvStoreWriter) Append(key, value []byte) error {
	if err := w.index.WriteUint64(w.data.Offset()); err != nil {
		return err
	}

	if err := w.data.WriteUint32(uint32(len(key))); err != nil {
		return err
	}

	if err := w.data.WriteUint32(uint32(len(value))); err != nil {
		return err
	}

	if _, err := w.data.Write(key); err != nil {
		return err
	}

	_, err := w.data.Write(value)
	return err
}

func (w *kvStoreWriter) Close() error {
	return codec.CloseAll(w.data, w.index)
}

type kvStoreReader struct {
	data      []byte
	dataInput *store.Input
	index     []byte
	indexIn   *store.Input
}

func newKVStoreReader(directory store.Directory, segmentName, suffix string, context store.IOContext) (*kvStoreReader, error) {
	dataInput, err := directory.OpenInput(codec.SegmentFileName(segmentName, suffix, StoredDataExtension), context)
	if err != nil {
		return nil, err
	}

	indexIn, err := directory.OpenInput(codec.SegmentFileName(segmentName, suffix, StoredIndexExtension), context)
	if err != nil {
		_ = dataInput.Close()
		return nil, err
	}

	data, _ := dataInput.Slice(0, dataInput.Len())
	index, _ := indexIn.Slice(0, indexIn.Len())

	if len(index)%8 != 0 {
		_ = codec.CloseAll(dataInput, indexIn)
		return nil, codec.NewCorruptIndexError(indexIn.Name(), "length %d is not a multiple of 8", len(index))
	}

	return &kvStoreReader{
		data:      data,
		dataInput: dataInput,
		index:     index,
		indexIn:   indexIn,
	}, nil
}

func (kv *kvStoreReader) entry(i int) (key, value []byte, err error) {
	offset := binary.BigEndian.Uint64(kv.index[i*8:])

	in := store.NewDataInput(kv.data)
	if err := in.Seek(int(min(offset, uint64(len(kv.data))))); err != nil {
		return nil, nil, err
	}

	keyLength, err := in.ReadUint32()
	if err != nil {
		return nil, nil, codec.NewCorruptIndexError(kv.dataInput.Name(), "entry %d: %v", i, err)
	}

	valueLength, err := in.ReadUint32()
	if err != nil {
		return nil, nil, codec.NewCorruptIndexError(kv.dataInput.Name(), "entry %d: %v", i, err)
	}

	key, err = in.ReadBytes(int(keyLength))
	if err != nil {
		return nil, nil, codec.NewCorruptIndexError(kv.dataInput.Name(), "entry %d: %v", i, err)
	}

	value, err = in.ReadBytes(int(valueLength))
	if err != nil {
		return nil, nil, codec.NewCorruptIndexError(kv.dataInput.Name(), "entry %d: %v", i, err)
	}

	return key, value, nil
}

func (kv *kvStoreReader) Get(key []byte) ([]byte, error) {
	left, right := 0, len(kv.index)/8-1

	for left <= right {
		middle := left + (right-left)/2

		currentKey, value, err := kv.entry(middle)
		if err != nil {
			return nil, err
		}

		switch bytes.Compare(currentKey, key) {
		case -1:
			left = middle + 1
		case 0:
			return value, nil
		default:
			right = middle - 1
		}
	}

	return nil, nil
}

func (kv *kvStoreReader) Close() error {
	return codec.CloseAll(kv.dataInput, kv.indexIn)
}
