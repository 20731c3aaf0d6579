package index

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/codec/tempblock"
	"github.com/larose/tempblock/internal/logger"
	"github.com/larose/tempblock/store"
	"golang.org/x/exp/rand"
)

// IndexWriter turns batches of documents into segments. Batches may be added
// from several goroutines: segments are flushed concurrently and only the
// commit is serialized.
type IndexWriter struct {
	directory *store.FSDirectory
	format    *tempblock.PostingsFormat
	logger    *slog.Logger
	mutex     sync.Mutex
	random    *rand.Rand
}

func NewIndexWriter(directory *store.FSDirectory, format *tempblock.PostingsFormat) *IndexWriter {
	source := &rand.LockedSource{}
	source.Seed(uint64(time.Now().UnixNano()))

	return &IndexWriter{
		directory: directory,
		format:    format,
		logger:    logger.WithComponent("index_writer"),
		random:    rand.New(source),
	}
}

func (w *IndexWriter) newSegmentName() string {
	return strconv.FormatUint(w.random.Uint64(), 36)
}

// AddDocuments writes docs as a new segment and commits it. Doc ids are
// assigned in order, starting at 0. An empty batch commits nothing and
// returns nil.
func (w *IndexWriter) AddDocuments(docs []Document) (*SegmentCommit, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	start := time.Now()

	buffer := NewSegmentBuffer()
	storedFieldsWriter := NewStoredFieldsWriter()
	tokenizer := NewStandardTokenizer()

	for i, doc := range docs {
		docId := codec.DocumentId(i)

		if err := buffer.Doc(docId); err != nil {
			return nil, err
		}
		storedFieldsWriter.Doc(docId)

		for _, field := range doc {
			fieldInfo, err := buffer.Field(field.Name, field.FieldType.IndexOptions())
			if err != nil {
				return nil, err
			}

			switch field.FieldType {
			case TextFieldType:
				tokenizer.Reset(field.Value)
				for {
					token, ok := tokenizer.NextToken()
					if !ok {
						break
					}
					buffer.Term(token.Text)
				}
			case ByteFieldType:
				buffer.Term(field.Value)
			default:
				return nil, fmt.Errorf("unknown field type %d", field.FieldType)
			}

			if field.Stored {
				storedFieldsWriter.Field(fieldInfo.Number, field.Value)
			}
		}
	}

	fieldInfos, err := buffer.FieldInfos()
	if err != nil {
		return nil, err
	}

	segmentCommit := &SegmentCommit{
		Name:         w.newSegmentName(),
		Suffix:       w.format.Name(),
		DocCount:     buffer.NumDocs(),
		Fields:       fieldInfos.List(),
		StoredFields: storedFieldsWriter.Fields(),
	}

	if err := w.flush(segmentCommit, fieldInfos, buffer, storedFieldsWriter); err != nil {
		w.removeSegmentFiles(segmentCommit.Name)
		return nil, err
	}

	if err := w.commit(segmentCommit); err != nil {
		w.removeSegmentFiles(segmentCommit.Name)
		return nil, err
	}

	w.logger.Debug("segment flushed",
		"segment", segmentCommit.Name,
		"docs", segmentCommit.DocCount,
		"fields", len(segmentCommit.Fields),
		"duration", time.Since(start),
	)

	return segmentCommit, nil
}

func (w *IndexWriter) flush(segmentCommit *SegmentCommit, fieldInfos *codec.FieldInfos, buffer *SegmentBuffer, storedFieldsWriter *StoredFieldsWriter) error {
	state := &codec.SegmentWriteState{
		Directory:     w.directory,
		Segment:       &codec.SegmentInfo{Name: segmentCommit.Name, DocCount: segmentCommit.DocCount},
		FieldInfos:    fieldInfos,
		SegmentSuffix: segmentCommit.Suffix,
		Context:       store.IOContextFlush,
	}

	fieldsConsumer, err := w.format.FieldsConsumer(state)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", segmentCommit.Name, err)
	}

	flushErr := buffer.Flush(fieldsConsumer)
	if err := errors.Join(flushErr, fieldsConsumer.Close()); err != nil {
		return fmt.Errorf("flush segment %s: %w", segmentCommit.Name, err)
	}

	if err := storedFieldsWriter.Write(w.directory, segmentCommit.Name); err != nil {
		return fmt.Errorf("write stored fields of segment %s: %w", segmentCommit.Name, err)
	}

	return nil
}

func (w *IndexWriter) commit(segmentCommit *SegmentCommit) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	commit, err := readCommit(w.directory.Path())
	if err != nil {
		return err
	}

	commit.Generation++
	commit.Segments = append(commit.Segments, segmentCommit)

	return writeCommit(w.directory.Path(), commit)
}

func (w *IndexWriter) removeSegmentFiles(segmentName string) {
	names, err := w.directory.ListAll()
	if err != nil {
		w.logger.Warn("list files of failed segment", "segment", segmentName, "error", err)
		return
	}

	prefix := codec.SegmentFileName(segmentName, "", "")
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		if err := w.directory.Remove(name); err != nil {
			w.logger.Warn("remove file of failed segment", "file", name, "error", err)
		}
	}
}
