package tempblock

import (
	"errors"
	"sync"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

const (
	postingsWriterName   = "postings writer"
	indexWriterName      = "terms index writer"
	dictionaryWriterName = "terms dictionary writer"
	postingsReaderName   = "postings reader"
	indexReaderName      = "terms index reader"
	dictionaryReaderName = "terms dictionary reader"
)

// recorder wraps a set of components and records every open and close.
// Failures and close errors can be injected per collaborator.
type recorder struct {
	closeErrs map[string]error
	events    []string
	failures  map[string]error
	mutex     sync.Mutex
}

func newRecorder() *recorder {
	return &recorder{
		closeErrs: make(map[string]error),
		failures:  make(map[string]error),
	}
}

func (r *recorder) record(event string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	count := 0
	for _, e := range r.Events() {
		if e == event {
			count++
		}
	}
	return count
}

func (r *recorder) open(name string) error {
	if err := r.failures[name]; err != nil {
		r.record("fail " + name)
		return err
	}
	r.record("open " + name)
	return nil
}

func (r *recorder) close(name string, closer func() error) error {
	r.record("close " + name)
	err := closer()
	if injected := r.closeErrs[name]; injected != nil {
		return errors.Join(injected, err)
	}
	return err
}

func (r *recorder) wrap(base Components) Components {
	return Components{
		NewPostingsWriter: func(state *codec.SegmentWriteState) (codec.PostingsWriter, error) {
			if err := r.open(postingsWriterName); err != nil {
				return nil, err
			}
			writer, err := base.NewPostingsWriter(state)
			if err != nil {
				return nil, err
			}
			return &recordedPostingsWriter{PostingsWriter: writer, recorder: r}, nil
		},
		NewTermIndexWriter: func(state *codec.SegmentWriteState, interval int) (codec.TermIndexWriter, error) {
			if err := r.open(indexWriterName); err != nil {
				return nil, err
			}
			writer, err := base.NewTermIndexWriter(state, interval)
			if err != nil {
				return nil, err
			}
			return &recordedTermIndexWriter{TermIndexWriter: writer, recorder: r}, nil
		},
		NewTermsWriter: func(indexWriter codec.TermIndexWriter, state *codec.SegmentWriteState, postingsWriter codec.PostingsWriter) (codec.FieldsConsumer, error) {
			if err := r.open(dictionaryWriterName); err != nil {
				return nil, err
			}
			writer, err := base.NewTermsWriter(indexWriter, state, postingsWriter)
			if err != nil {
				return nil, err
			}
			return &recordedFieldsConsumer{FieldsConsumer: writer, recorder: r}, nil
		},
		NewPostingsReader: func(directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, context store.IOContext, segmentSuffix string) (codec.PostingsReader, error) {
			if err := r.open(postingsReaderName); err != nil {
				return nil, err
			}
			reader, err := base.NewPostingsReader(directory, fieldInfos, segment, context, segmentSuffix)
			if err != nil {
				return nil, err
			}
			return &recordedPostingsReader{PostingsReader: reader, recorder: r}, nil
		},
		NewTermIndexReader: func(directory store.Directory, fieldInfos *codec.FieldInfos, segmentName string, comparator codec.TermComparator, segmentSuffix string, context store.IOContext) (codec.TermIndexReader, error) {
			if err := r.open(indexReaderName); err != nil {
				return nil, err
			}
			reader, err := base.NewTermIndexReader(directory, fieldInfos, segmentName, comparator, segmentSuffix, context)
			if err != nil {
				return nil, err
			}
			return &recordedTermIndexReader{TermIndexReader: reader, recorder: r}, nil
		},
		NewTermsReader: func(indexReader codec.TermIndexReader, directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, postingsReader codec.PostingsReader, context store.IOContext, segmentSuffix string) (codec.FieldsProducer, error) {
			if err := r.open(dictionaryReaderName); err != nil {
				return nil, err
			}
			reader, err := base.NewTermsReader(indexReader, directory, fieldInfos, segment, postingsReader, context, segmentSuffix)
			if err != nil {
				return nil, err
			}
			return &recordedFieldsProducer{FieldsProducer: reader, recorder: r}, nil
		},
	}
}

type recordedPostingsWriter struct {
	codec.PostingsWriter
	recorder *recorder
}

func (w *recordedPostingsWriter) Close() error {
	return w.recorder.close(postingsWriterName, w.PostingsWriter.Close)
}

type recordedTermIndexWriter struct {
	codec.TermIndexWriter
	recorder *recorder
}

func (w *recordedTermIndexWriter) Close() error {
	return w.recorder.close(indexWriterName, w.TermIndexWriter.Close)
}

type recordedFieldsConsumer struct {
	codec.FieldsConsumer
	recorder *recorder
}

func (w *recordedFieldsConsumer) Close() error {
	return w.recorder.close(dictionaryWriterName, w.FieldsConsumer.Close)
}

type recordedPostingsReader struct {
	codec.PostingsReader
	recorder *recorder
}

func (r *recordedPostingsReader) Close() error {
	return r.recorder.close(postingsReaderName, r.PostingsReader.Close)
}

type recordedTermIndexReader struct {
	codec.TermIndexReader
	recorder *recorder
}

func (r *recordedTermIndexReader) Close() error {
	return r.recorder.close(indexReaderName, r.TermIndexReader.Close)
}

type recordedFieldsProducer struct {
	codec.FieldsProducer
	recorder *recorder
}

func (r *recordedFieldsProducer) Close() error {
	return r.recorder.close(dictionaryReaderName, r.FieldsProducer.Close)
}
