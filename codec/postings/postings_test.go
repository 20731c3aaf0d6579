package postings

import (
	"io"
	"testing"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPosting struct {
	docId     codec.DocumentId
	positions []uint32
}

func newWriteState(t *testing.T, directory store.Directory, fields ...*codec.FieldInfo) *codec.SegmentWriteState {
	fieldInfos, err := codec.NewFieldInfos(fields)
	require.NoError(t, err)

	return &codec.SegmentWriteState{
		Directory:     directory,
		Segment:       &codec.SegmentInfo{Name: "1"},
		FieldInfos:    fieldInfos,
		SegmentSuffix: "test",
		Context:       store.IOContextFlush,
	}
}

func writeTerm(t *testing.T, writer *Writer, postings []testPosting) []byte {
	require.NoError(t, writer.StartTerm())

	stats := codec.TermStats{}
	for _, posting := range postings {
		freq := uint32(len(posting.positions))
		require.NoError(t, writer.StartDoc(posting.docId, freq))
		for _, position := range posting.positions {
			require.NoError(t, writer.AddPosition(position))
		}
		require.NoError(t, writer.FinishDoc())

		stats.DocFreq++
		stats.TotalTermFreq += uint64(freq)
	}

	meta, err := writer.FinishTerm(stats)
	require.NoError(t, err)

	return meta
}

func readAll(t *testing.T, postingsEnum codec.PostingsEnum, withPositions bool) []testPosting {
	var result []testPosting

	for {
		docId, err := postingsEnum.NextDoc()
		require.NoError(t, err)
		if docId == codec.NoMoreDocs {
			return result
		}

		posting := testPosting{docId: docId}
		if withPositions {
			for i := uint32(0); i < postingsEnum.Freq(); i++ {
				position, err := postingsEnum.NextPosition()
				require.NoError(t, err)
				posting.positions = append(posting.positions, position)
			}
		} else {
			posting.positions = make([]uint32, postingsEnum.Freq())
		}

		result = append(result, posting)
	}
}

func manyPostings(count int) []testPosting {
	postings := make([]testPosting, count)
	for i := range postings {
		docId := codec.DocumentId(i*3 + 1)
		positions := make([]uint32, i%4+1)
		for j := range positions {
			positions[j] = uint32(i + j*7)
		}
		postings[i] = testPosting{docId: docId, positions: positions}
	}
	return postings
}

func TestPostingsRoundTrip(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	body := &codec.FieldInfo{Name: "body", Number: 0, IndexOptions: codec.IndexDocsFreqsAndPositions}
	state := newWriteState(t, directory, body)

	writer, err := NewWriter(state)
	require.NoError(t, err)

	writer.SetField(body)

	alpha := []testPosting{{docId: 1, positions: []uint32{0, 4}}, {docId: 2, positions: []uint32{3}}}
	many := manyPostings(300)

	alphaMeta := writeTerm(t, writer, alpha)
	manyMeta := writeTerm(t, writer, many)

	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())

	names, err := directory.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"segment.1.test.frq", "segment.1.test.prx"}, names)

	reader, err := NewReader(directory, state.FieldInfos, state.Segment, store.IOContextRead, "test")
	require.NoError(t, err)
	defer reader.Close()

	postingsEnum, err := reader.Postings(body, &codec.TermState{DocFreq: 2, Meta: alphaMeta})
	require.NoError(t, err)
	assert.Equal(t, alpha, readAll(t, postingsEnum, true))

	postingsEnum, err = reader.Postings(body, &codec.TermState{DocFreq: 300, Meta: manyMeta})
	require.NoError(t, err)
	assert.Equal(t, many, readAll(t, postingsEnum, true))
}

func TestPostingsAdvanceSkipsBlocks(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	body := &codec.FieldInfo{Name: "body", Number: 0, IndexOptions: codec.IndexDocsFreqsAndPositions}
	state := newWriteState(t, directory, body)

	writer, err := NewWriter(state)
	require.NoError(t, err)
	writer.SetField(body)

	many := manyPostings(400)
	meta := writeTerm(t, writer, many)
	require.NoError(t, writer.Close())

	reader, err := NewReader(directory, state.FieldInfos, state.Segment, store.IOContextReadOnce, "test")
	require.NoError(t, err)
	defer reader.Close()

	postingsEnum, err := reader.Postings(body, &codec.TermState{DocFreq: 400, Meta: meta})
	require.NoError(t, err)

	// Read a position of the first doc, then jump to the third block.
	docId, err := postingsEnum.NextDoc()
	require.NoError(t, err)
	assert.Equal(t, codec.DocumentId(1), docId)

	position, err := postingsEnum.NextPosition()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), position)

	target := many[260].docId - 1
	docId, err = postingsEnum.Advance(target)
	require.NoError(t, err)
	assert.Equal(t, many[260].docId, docId)
	assert.Equal(t, uint32(len(many[260].positions)), postingsEnum.Freq())

	for _, expected := range many[260].positions {
		position, err := postingsEnum.NextPosition()
		require.NoError(t, err)
		assert.Equal(t, expected, position)
	}

	_, err = postingsEnum.NextPosition()
	assert.ErrorIs(t, err, io.EOF)

	// Skip some docs inside the block without reading their positions.
	docId, err = postingsEnum.Advance(many[263].docId)
	require.NoError(t, err)
	assert.Equal(t, many[263].docId, docId)

	position, err = postingsEnum.NextPosition()
	require.NoError(t, err)
	assert.Equal(t, many[263].positions[0], position)

	docId, err = postingsEnum.Advance(many[399].docId + 1)
	require.NoError(t, err)
	assert.Equal(t, codec.NoMoreDocs, docId)
	assert.Equal(t, codec.NoMoreDocs, postingsEnum.DocID())
}

func TestPostingsWithoutPositions(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	id := &codec.FieldInfo{Name: "id", Number: 0, IndexOptions: codec.IndexDocsAndFreqs}
	state := newWriteState(t, directory, id)

	writer, err := NewWriter(state)
	require.NoError(t, err)
	writer.SetField(id)

	postings := []testPosting{{docId: 5, positions: []uint32{0}}, {docId: 9, positions: []uint32{0, 1}}}
	meta := writeTerm(t, writer, postings)
	require.NoError(t, writer.Close())

	reader, err := NewReader(directory, state.FieldInfos, state.Segment, store.IOContextRead, "test")
	require.NoError(t, err)
	defer reader.Close()

	postingsEnum, err := reader.Postings(id, &codec.TermState{DocFreq: 2, Meta: meta})
	require.NoError(t, err)

	docId, err := postingsEnum.NextDoc()
	require.NoError(t, err)
	assert.Equal(t, codec.DocumentId(5), docId)

	_, err = postingsEnum.NextPosition()
	assert.ErrorIs(t, err, codec.ErrPositionsNotIndexed)

	docId, err = postingsEnum.NextDoc()
	require.NoError(t, err)
	assert.Equal(t, codec.DocumentId(9), docId)
	assert.Equal(t, uint32(2), postingsEnum.Freq())
	assert.Equal(t, uint64(2), postingsEnum.(*PostingsEnum).blockMaxFreq())
}

func TestWriterRejectsBadInput(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	body := &codec.FieldInfo{Name: "body", Number: 0, IndexOptions: codec.IndexDocsFreqsAndPositions}
	state := newWriteState(t, directory, body)

	writer, err := NewWriter(state)
	require.NoError(t, err)
	defer writer.Close()

	assert.Error(t, writer.StartTerm(), "StartTerm before SetField")

	writer.SetField(body)
	require.NoError(t, writer.StartTerm())
	require.NoError(t, writer.StartDoc(3, 1))
	require.NoError(t, writer.AddPosition(0))
	assert.Error(t, writer.AddPosition(1), "more positions than freq")
	require.NoError(t, writer.FinishDoc())
	assert.Error(t, writer.StartDoc(3, 1), "doc ids out of order")

	_, err = writer.FinishTerm(codec.TermStats{DocFreq: 5})
	assert.Error(t, err, "doc freq mismatch")
}

func TestNewWriterClosesFreqFileWhenProxFileExists(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	state := newWriteState(t, directory, &codec.FieldInfo{Name: "body"})

	existing, err := directory.CreateOutput(codec.SegmentFileName("1", "test", ProxExtension), store.IOContextFlush)
	require.NoError(t, err)
	require.NoError(t, existing.Close())

	_, err = NewWriter(state)
	assert.Error(t, err)

	// The freq file was created and closed; it can be removed.
	require.NoError(t, directory.Remove(codec.SegmentFileName("1", "test", FreqExtension)))
}

func TestNewReaderRejectsBadHeader(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	state := newWriteState(t, directory, &codec.FieldInfo{Name: "body"})

	writer, err := NewWriter(state)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	require.NoError(t, directory.Remove(codec.SegmentFileName("1", "test", ProxExtension)))
	garbage, err := directory.CreateOutput(codec.SegmentFileName("1", "test", ProxExtension), store.IOContextFlush)
	require.NoError(t, err)
	_, err = garbage.Write([]byte("not a prx file"))
	require.NoError(t, err)
	require.NoError(t, garbage.Close())

	_, err = NewReader(directory, state.FieldInfos, state.Segment, store.IOContextRead, "test")
	assert.ErrorIs(t, err, codec.ErrCorruptIndex)

	var corrupt *codec.CorruptIndexError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "segment.1.test.prx", corrupt.File)
}

func TestPostingsRejectsBadMeta(t *testing.T) {
	directory := store.NewFSDirectory(t.TempDir())
	body := &codec.FieldInfo{Name: "body", Number: 0, IndexOptions: codec.IndexDocsFreqsAndPositions}
	state := newWriteState(t, directory, body)

	writer, err := NewWriter(state)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader, err := NewReader(directory, state.FieldInfos, state.Segment, store.IOContextRead, "test")
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Postings(body, &codec.TermState{Meta: []byte{0x80}})
	assert.ErrorIs(t, err, codec.ErrCorruptIndex)

	_, err = reader.Postings(body, &codec.TermState{Meta: []byte{0, 100, 0, 0}})
	assert.ErrorIs(t, err, codec.ErrCorruptIndex)
}
