// Package tempblock is the postings format that ties the three codec
// collaborators together for one segment: a postings stream, a sampled
// terms index and a block terms dictionary built on top of both.
//
// The format only sequences construction and teardown. Opening for write
// acquires the postings writer, then the terms index writer, then the
// dictionary writer; opening for read mirrors that order. If a step fails,
// every resource acquired before it is closed in reverse order and nothing
// is returned to the caller.
package tempblock

import (
	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/codec/blockterms"
	"github.com/larose/tempblock/codec/postings"
	"github.com/larose/tempblock/codec/termindex"
	"github.com/larose/tempblock/store"
)

const (
	FormatName = "TempBlock"

	// FreqExtension is the postings file holding doc ids and frequencies.
	FreqExtension = postings.FreqExtension
	// ProxExtension is the postings file holding positions.
	ProxExtension = postings.ProxExtension

	DefaultTermIndexInterval = termindex.DefaultInterval
)

// Components holds the constructors of every collaborator. The dictionary
// constructors receive the other two collaborators and must not close them
// when they fail.
type Components struct {
	NewPostingsWriter  func(state *codec.SegmentWriteState) (codec.PostingsWriter, error)
	NewTermIndexWriter func(state *codec.SegmentWriteState, interval int) (codec.TermIndexWriter, error)
	NewTermsWriter     func(indexWriter codec.TermIndexWriter, state *codec.SegmentWriteState, postingsWriter codec.PostingsWriter) (codec.FieldsConsumer, error)

	NewPostingsReader  func(directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, context store.IOContext, segmentSuffix string) (codec.PostingsReader, error)
	NewTermIndexReader func(directory store.Directory, fieldInfos *codec.FieldInfos, segmentName string, comparator codec.TermComparator, segmentSuffix string, context store.IOContext) (codec.TermIndexReader, error)
	NewTermsReader     func(indexReader codec.TermIndexReader, directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, postingsReader codec.PostingsReader, context store.IOContext, segmentSuffix string) (codec.FieldsProducer, error)
}

func DefaultComponents() Components {
	return Components{
		NewPostingsWriter: func(state *codec.SegmentWriteState) (codec.PostingsWriter, error) {
			writer, err := postings.NewWriter(state)
			if err != nil {
				return nil, err
			}
			return writer, nil
		},
		NewTermIndexWriter: func(state *codec.SegmentWriteState, interval int) (codec.TermIndexWriter, error) {
			writer, err := termindex.NewWriter(state, interval)
			if err != nil {
				return nil, err
			}
			return writer, nil
		},
		NewTermsWriter: func(indexWriter codec.TermIndexWriter, state *codec.SegmentWriteState, postingsWriter codec.PostingsWriter) (codec.FieldsConsumer, error) {
			writer, err := blockterms.NewWriter(indexWriter, state, postingsWriter)
			if err != nil {
				return nil, err
			}
			return writer, nil
		},
		NewPostingsReader: func(directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, context store.IOContext, segmentSuffix string) (codec.PostingsReader, error) {
			reader, err := postings.NewReader(directory, fieldInfos, segment, context, segmentSuffix)
			if err != nil {
				return nil, err
			}
			return reader, nil
		},
		NewTermIndexReader: func(directory store.Directory, fieldInfos *codec.FieldInfos, segmentName string, comparator codec.TermComparator, segmentSuffix string, context store.IOContext) (codec.TermIndexReader, error) {
			reader, err := termindex.NewReader(directory, fieldInfos, segmentName, comparator, segmentSuffix, context)
			if err != nil {
				return nil, err
			}
			return reader, nil
		},
		NewTermsReader: func(indexReader codec.TermIndexReader, directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, postingsReader codec.PostingsReader, context store.IOContext, segmentSuffix string) (codec.FieldsProducer, error) {
			reader, err := blockterms.NewReader(indexReader, directory, fieldInfos, segment, postingsReader, context, segmentSuffix)
			if err != nil {
				return nil, err
			}
			return reader, nil
		},
	}
}

type PostingsFormat struct {
	components        Components
	termIndexInterval int
}

type Option func(*PostingsFormat)

// WithTermIndexInterval sets how many terms the index skips between two
// samples. It is validated when a segment is opened for write.
func WithTermIndexInterval(interval int) Option {
	return func(f *PostingsFormat) {
		f.termIndexInterval = interval
	}
}

func WithComponents(components Components) Option {
	return func(f *PostingsFormat) {
		f.components = components
	}
}

func New(opts ...Option) *PostingsFormat {
	f := &PostingsFormat{
		components:        DefaultComponents(),
		termIndexInterval: DefaultTermIndexInterval,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *PostingsFormat) Name() string {
	return FormatName
}

func (f *PostingsFormat) TermIndexInterval() int {
	return f.termIndexInterval
}

// FieldsConsumer opens the segment for write. Closing the returned consumer
// closes the dictionary, the terms index and the postings stream.
func (f *PostingsFormat) FieldsConsumer(state *codec.SegmentWriteState) (codec.FieldsConsumer, error) {
	var assembly codec.Assembly

	postingsWriter, err := codec.Acquire(&assembly, "postings writer", func() (codec.PostingsWriter, error) {
		return f.components.NewPostingsWriter(state)
	})
	if err != nil {
		return nil, err
	}

	indexWriter, err := codec.Acquire(&assembly, "terms index writer", func() (codec.TermIndexWriter, error) {
		return f.components.NewTermIndexWriter(state, f.termIndexInterval)
	})
	if err != nil {
		return nil, err
	}

	fieldsConsumer, err := codec.Acquire(&assembly, "terms dictionary writer", func() (codec.FieldsConsumer, error) {
		return f.components.NewTermsWriter(indexWriter, state, postingsWriter)
	})
	if err != nil {
		return nil, err
	}

	assembly.Release()

	return fieldsConsumer, nil
}

// FieldsProducer opens the segment for read. The returned producer is safe
// for concurrent lookups.
func (f *PostingsFormat) FieldsProducer(state *codec.SegmentReadState) (codec.FieldsProducer, error) {
	var assembly codec.Assembly

	postingsReader, err := codec.Acquire(&assembly, "postings reader", func() (codec.PostingsReader, error) {
		return f.components.NewPostingsReader(state.Directory, state.FieldInfos, state.Segment, state.Context, state.SegmentSuffix)
	})
	if err != nil {
		return nil, err
	}

	indexReader, err := codec.Acquire(&assembly, "terms index reader", func() (codec.TermIndexReader, error) {
		return f.components.NewTermIndexReader(state.Directory, state.FieldInfos, state.Segment.Name, codec.UnsignedByteOrder, state.SegmentSuffix, state.Context)
	})
	if err != nil {
		return nil, err
	}

	fieldsProducer, err := codec.Acquire(&assembly, "terms dictionary reader", func() (codec.FieldsProducer, error) {
		return f.components.NewTermsReader(indexReader, state.Directory, state.FieldInfos, state.Segment, postingsReader, state.Context, state.SegmentSuffix)
	})
	if err != nil {
		return nil, err
	}

	assembly.Release()

	return fieldsProducer, nil
}
