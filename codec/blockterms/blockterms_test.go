package blockterms

import (
	"fmt"
	"testing"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/codec/postings"
	"github.com/larose/tempblock/codec/termindex"
	"github.com/larose/tempblock/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	body = &codec.FieldInfo{Name: "body", Number: 0, IndexOptions: codec.IndexDocsFreqsAndPositions}
	id   = &codec.FieldInfo{Name: "id", Number: 1, IndexOptions: codec.IndexDocs}
)

type termPostings struct {
	term   string
	docIds []codec.DocumentId
}

func newWriteState(t *testing.T, directory store.Directory) *codec.SegmentWriteState {
	fieldInfos, err := codec.NewFieldInfos([]*codec.FieldInfo{body, id})
	require.NoError(t, err)

	return &codec.SegmentWriteState{
		Directory:  directory,
		Segment:    &codec.SegmentInfo{Name: "3", DocCount: 1000},
		FieldInfos: fieldInfos,
		Context:    store.IOContextFlush,
	}
}

func newWriter(t *testing.T, state *codec.SegmentWriteState, interval int) *Writer {
	postingsWriter, err := postings.NewWriter(state)
	require.NoError(t, err)

	indexWriter, err := termindex.NewWriter(state, interval)
	require.NoError(t, err)

	writer, err := NewWriter(indexWriter, state, postingsWriter)
	require.NoError(t, err)

	return writer
}

func newReader(t *testing.T, state *codec.SegmentWriteState) *Reader {
	postingsReader, err := postings.NewReader(state.Directory, state.FieldInfos, state.Segment, store.IOContextRead, state.SegmentSuffix)
	require.NoError(t, err)

	indexReader, err := termindex.NewReader(state.Directory, state.FieldInfos, state.Segment.Name, codec.UnsignedByteOrder, state.SegmentSuffix, store.IOContextRead)
	require.NoError(t, err)

	reader, err := NewReader(indexReader, state.Directory, state.FieldInfos, state.Segment, postingsReader, store.IOContextRead, state.SegmentSuffix)
	require.NoError(t, err)

	return reader
}

// writeField writes every term with one position per doc, equal to the doc
// id.
func writeField(t *testing.T, writer *Writer, field *codec.FieldInfo, terms []termPostings) {
	termsConsumer, err := writer.AddField(field)
	require.NoError(t, err)

	for _, term := range terms {
		postingsConsumer, err := termsConsumer.StartTerm([]byte(term.term))
		require.NoError(t, err)

		for _, docId := range term.docIds {
			require.NoError(t, postingsConsumer.StartDoc(docId, 1))
			require.NoError(t, postingsConsumer.AddPosition(uint32(docId)))
			require.NoError(t, postingsConsumer.FinishDoc())
		}

		stats := codec.TermStats{DocFreq: uint32(len(term.docIds)), TotalTermFreq: uint64(len(term.docIds))}
		require.NoError(t, termsConsumer.FinishTerm([]byte(term.term), stats))
	}

	require.NoError(t, termsConsumer.Finish())
}

func readDocIds(t *testing.T, postingsEnum codec.PostingsEnum) []codec.DocumentId {
	var docIds []codec.DocumentId
	for {
		docId, err := postingsEnum.NextDoc()
		require.NoError(t, err)
		if docId == codec.NoMoreDocs {
			return docIds
		}
		docIds = append(docIds, docId)
	}
}

func sequentialTerms(count int) []termPostings {
	terms := make([]termPostings, count)
	for i := range terms {
		terms[i] = termPostings{
			term:   fmt.Sprintf("term%04d", i),
			docIds: []codec.DocumentId{codec.DocumentId(i), codec.DocumentId(i + 500)},
		}
	}
	return terms
}

func TestDictionaryLookup(t *testing.T) {
	for _, interval := range []int{1, 4, 32} {
		t.Run(fmt.Sprintf("interval=%d", interval), func(t *testing.T) {
			state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

			terms := sequentialTerms(100)

			writer := newWriter(t, state, interval)
			writeField(t, writer, body, terms)
			require.NoError(t, writer.Close())
			require.NoError(t, writer.Close())

			reader := newReader(t, state)
			defer reader.Close()

			assert.Equal(t, []string{"body"}, reader.Fields())

			fieldTerms, err := reader.Terms("body")
			require.NoError(t, err)

			assert.Equal(t, uint64(100), fieldTerms.Size())
			assert.Equal(t, uint32(200), fieldTerms.DocCount())
			assert.Equal(t, uint64(200), fieldTerms.SumDocFreq())
			assert.Equal(t, uint64(200), fieldTerms.SumTotalTermFreq())

			for _, term := range terms {
				postingsEnum, err := fieldTerms.Postings([]byte(term.term))
				require.NoError(t, err, term.term)
				assert.Equal(t, term.docIds, readDocIds(t, postingsEnum), term.term)
			}

			for _, missing := range []string{"", "a", "term0050x", "zzz"} {
				_, err := fieldTerms.Postings([]byte(missing))
				assert.ErrorIs(t, err, codec.ErrTermNotFound, missing)
			}

			_, err = reader.Terms("id")
			assert.ErrorIs(t, err, codec.ErrFieldNotFound)
		})
	}
}

func TestTermsEnum(t *testing.T) {
	state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

	terms := []termPostings{
		{term: "apple", docIds: []codec.DocumentId{1}},
		{term: "applesauce", docIds: []codec.DocumentId{1, 2}},
		{term: "banana", docIds: []codec.DocumentId{3}},
		{term: "band", docIds: []codec.DocumentId{4}},
		{term: "bandana", docIds: []codec.DocumentId{4, 5, 6}},
		{term: "cherry", docIds: []codec.DocumentId{7}},
	}

	writer := newWriter(t, state, 2)
	writeField(t, writer, body, terms)
	require.NoError(t, writer.Close())

	reader := newReader(t, state)
	defer reader.Close()

	fieldTerms, err := reader.Terms("body")
	require.NoError(t, err)

	termsEnum := fieldTerms.Iterator()
	var seen []string
	for {
		term, err := termsEnum.Next()
		require.NoError(t, err)
		if term == nil {
			break
		}
		seen = append(seen, string(term))
	}
	assert.Equal(t, []string{"apple", "applesauce", "banana", "band", "bandana", "cherry"}, seen)

	testData := []struct {
		target string
		status codec.SeekStatus
		term   string
	}{
		{target: "a", status: codec.SeekNotFound, term: "apple"},
		{target: "apple", status: codec.SeekFound, term: "apple"},
		{target: "applf", status: codec.SeekNotFound, term: "banana"},
		{target: "band", status: codec.SeekFound, term: "band"},
		{target: "bandanas", status: codec.SeekNotFound, term: "cherry"},
		{target: "cherry", status: codec.SeekFound, term: "cherry"},
		{target: "date", status: codec.SeekEnd},
	}

	termsEnum = fieldTerms.Iterator()
	for _, item := range testData {
		status, err := termsEnum.SeekCeil([]byte(item.target))
		require.NoError(t, err, item.target)
		assert.Equal(t, item.status, status, item.target)

		if status == codec.SeekEnd {
			assert.Nil(t, termsEnum.Term())
			continue
		}

		assert.Equal(t, item.term, string(termsEnum.Term()), item.target)
	}

	_, err = termsEnum.SeekCeil([]byte("bandana"))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), termsEnum.DocFreq())
	assert.Equal(t, uint64(3), termsEnum.TotalTermFreq())

	postingsEnum, err := termsEnum.Postings()
	require.NoError(t, err)
	assert.Equal(t, []codec.DocumentId{4, 5, 6}, readDocIds(t, postingsEnum))
}

func TestEmptyTerm(t *testing.T) {
	terms := []termPostings{
		{term: "", docIds: []codec.DocumentId{1}},
		{term: "a", docIds: []codec.DocumentId{2}},
		{term: "b", docIds: []codec.DocumentId{3}},
		{term: "c", docIds: []codec.DocumentId{4}},
		{term: "\u00e9t", docIds: []codec.DocumentId{5}},
		{term: "\xff\xff", docIds: []codec.DocumentId{6}},
	}

	for _, interval := range []int{1, 2, 32} {
		t.Run(fmt.Sprintf("interval=%d", interval), func(t *testing.T) {
			state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

			writer := newWriter(t, state, interval)
			writeField(t, writer, body, terms)
			require.NoError(t, writer.Close())

			reader := newReader(t, state)
			defer reader.Close()

			fieldTerms, err := reader.Terms("body")
			require.NoError(t, err)
			assert.Equal(t, uint64(len(terms)), fieldTerms.Size())

			termsEnum := fieldTerms.Iterator()
			var seen []string
			for {
				term, err := termsEnum.Next()
				require.NoError(t, err)
				if term == nil {
					break
				}
				seen = append(seen, string(term))
			}
			assert.Equal(t, []string{"", "a", "b", "c", "\u00e9t", "\xff\xff"}, seen)

			for _, term := range terms {
				postingsEnum, err := fieldTerms.Postings([]byte(term.term))
				require.NoError(t, err, "%q", term.term)
				assert.Equal(t, term.docIds, readDocIds(t, postingsEnum), "%q", term.term)
			}

			termsEnum = fieldTerms.Iterator()
			status, err := termsEnum.SeekCeil(nil)
			require.NoError(t, err)
			assert.Equal(t, codec.SeekFound, status)
			assert.NotNil(t, termsEnum.Term())
			assert.Empty(t, termsEnum.Term())
		})
	}
}

func TestWriterRejectsTermsOutOfOrder(t *testing.T) {
	state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

	writer := newWriter(t, state, 4)
	defer writer.Close()

	termsConsumer, err := writer.AddField(body)
	require.NoError(t, err)

	postingsConsumer, err := termsConsumer.StartTerm([]byte("beta"))
	require.NoError(t, err)
	require.NoError(t, postingsConsumer.StartDoc(1, 1))
	require.NoError(t, postingsConsumer.AddPosition(0))
	require.NoError(t, postingsConsumer.FinishDoc())
	require.NoError(t, termsConsumer.FinishTerm([]byte("beta"), codec.TermStats{DocFreq: 1, TotalTermFreq: 1}))

	_, err = termsConsumer.StartTerm([]byte("alpha"))
	assert.ErrorIs(t, err, codec.ErrTermOrder)

	_, err = termsConsumer.StartTerm([]byte("beta"))
	assert.ErrorIs(t, err, codec.ErrTermOrder)

	_, err = writer.AddField(body)
	assert.Error(t, err)
}

func TestMultipleFields(t *testing.T) {
	state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

	writer := newWriter(t, state, 3)
	writeField(t, writer, id, []termPostings{{term: "doc-1", docIds: []codec.DocumentId{1}}})
	writeField(t, writer, body, sequentialTerms(10))
	require.NoError(t, writer.Close())

	reader := newReader(t, state)
	defer reader.Close()

	assert.Equal(t, []string{"body", "id"}, reader.Fields())

	idTerms, err := reader.Terms("id")
	require.NoError(t, err)

	postingsEnum, err := idTerms.Postings([]byte("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, []codec.DocumentId{1}, readDocIds(t, postingsEnum))

	_, err = idTerms.Postings([]byte("term0001"))
	assert.ErrorIs(t, err, codec.ErrTermNotFound)
}

func TestNewReaderRejectsDocCountAboveSegment(t *testing.T) {
	state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

	writer := newWriter(t, state, 3)
	writeField(t, writer, body, sequentialTerms(10))
	require.NoError(t, writer.Close())

	postingsReader, err := postings.NewReader(state.Directory, state.FieldInfos, state.Segment, store.IOContextRead, "")
	require.NoError(t, err)
	defer postingsReader.Close()

	indexReader, err := termindex.NewReader(state.Directory, state.FieldInfos, state.Segment.Name, codec.UnsignedByteOrder, "", store.IOContextRead)
	require.NoError(t, err)
	defer indexReader.Close()

	small := &codec.SegmentInfo{Name: state.Segment.Name, DocCount: 5}
	_, err = NewReader(indexReader, state.Directory, state.FieldInfos, small, postingsReader, store.IOContextRead, "")
	assert.ErrorIs(t, err, codec.ErrCorruptIndex)
}

func TestConstructorsRequireCollaborators(t *testing.T) {
	state := newWriteState(t, store.NewFSDirectory(t.TempDir()))

	_, err := NewWriter(nil, state, nil)
	assert.Error(t, err)

	_, err = NewReader(nil, state.Directory, state.FieldInfos, state.Segment, nil, store.IOContextRead, "")
	assert.Error(t, err)

	names, err := state.Directory.ListAll()
	require.NoError(t, err)
	assert.Empty(t, names)
}
