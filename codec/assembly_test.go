package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	name string
	err  error
	log  *[]string
}

func (c *recordingCloser) Close() error {
	*c.log = append(*c.log, c.name)
	return c.err
}

func TestAssemblyReleasesInReverseOrder(t *testing.T) {
	var log []string
	assembly := &Assembly{}

	_, err := Acquire(assembly, "first", func() (*recordingCloser, error) {
		return &recordingCloser{name: "first", log: &log}, nil
	})
	require.NoError(t, err)

	_, err = Acquire(assembly, "second", func() (*recordingCloser, error) {
		return &recordingCloser{name: "second", log: &log}, nil
	})
	require.NoError(t, err)

	cause := errors.New("disk full")
	third, err := Acquire(assembly, "third", func() (*recordingCloser, error) {
		return nil, cause
	})

	assert.Nil(t, third)
	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "open third")
	assert.Equal(t, []string{"second", "first"}, log)
}

func TestAssemblyKeepsReleasingAfterReleaseFailure(t *testing.T) {
	var log []string
	assembly := &Assembly{}
	closeErr := errors.New("close failed")

	_, err := Acquire(assembly, "first", func() (*recordingCloser, error) {
		return &recordingCloser{name: "first", log: &log}, nil
	})
	require.NoError(t, err)

	_, err = Acquire(assembly, "second", func() (*recordingCloser, error) {
		return &recordingCloser{name: "second", err: closeErr, log: &log}, nil
	})
	require.NoError(t, err)

	cause := errors.New("boom")
	_, err = Acquire(assembly, "third", func() (*recordingCloser, error) {
		return nil, cause
	})

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, closeErr)

	var releaseErr *ReleaseError
	require.ErrorAs(t, err, &releaseErr)
	assert.Equal(t, "second", releaseErr.Resource)

	assert.Equal(t, []string{"second", "first"}, log)
}

func TestAssemblyReleaseTransfersOwnership(t *testing.T) {
	var log []string
	assembly := &Assembly{}

	_, err := Acquire(assembly, "first", func() (*recordingCloser, error) {
		return &recordingCloser{name: "first", log: &log}, nil
	})
	require.NoError(t, err)

	assembly.Release()

	err = assembly.Rollback(errors.New("too late"))
	assert.Error(t, err)
	assert.Empty(t, log)
}

func TestAssemblyFirstStepFailureReleasesNothing(t *testing.T) {
	assembly := &Assembly{}
	cause := errors.New("no such file")

	_, err := Acquire(assembly, "first", func() (*recordingCloser, error) {
		return nil, cause
	})

	assert.ErrorIs(t, err, cause)

	var releaseErr *ReleaseError
	assert.False(t, errors.As(err, &releaseErr))
}

func TestCloseAllJoinsErrors(t *testing.T) {
	var log []string
	errA := errors.New("a")
	errC := errors.New("c")

	err := CloseAll(
		&recordingCloser{name: "a", err: errA, log: &log},
		nil,
		&recordingCloser{name: "b", log: &log},
		&recordingCloser{name: "c", err: errC, log: &log},
	)

	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.Equal(t, []string{"a", "b", "c"}, log)
}

func TestFieldInfos(t *testing.T) {
	infos, err := NewFieldInfos([]*FieldInfo{
		{Name: "title", Number: 1, IndexOptions: IndexDocsAndFreqs},
		{Name: "body", Number: 0, IndexOptions: IndexDocsFreqsAndPositions},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, infos.Len())
	assert.Equal(t, "body", infos.List()[0].Name)
	assert.Equal(t, uint32(1), infos.ByName("title").Number)
	assert.Equal(t, "body", infos.ByNumber(0).Name)
	assert.Nil(t, infos.ByName("missing"))

	_, err = NewFieldInfos([]*FieldInfo{{Name: "a", Number: 0}, {Name: "a", Number: 1}})
	assert.Error(t, err)

	_, err = NewFieldInfos([]*FieldInfo{{Name: "a", Number: 0}, {Name: "b", Number: 0}})
	assert.Error(t, err)
}

func TestSegmentFileName(t *testing.T) {
	assert.Equal(t, "segment.12.frq", SegmentFileName("12", "", "frq"))
	assert.Equal(t, "segment.12.TempBlock_0.prx", SegmentFileName("12", "TempBlock_0", "prx"))
}

func TestUnsignedByteOrder(t *testing.T) {
	// U+00E9 encodes as 0xC3 0xA9 and sorts after every ASCII byte.
	assert.Negative(t, UnsignedByteOrder([]byte("z"), []byte("é")))
	assert.Negative(t, UnsignedByteOrder([]byte("alpha"), []byte("alphabet")))
	assert.Zero(t, UnsignedByteOrder([]byte("beta"), []byte("beta")))
}
