package postings

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

type PostingsEnum struct {
	file         string
	freq         *store.DataInput
	prox         *store.DataInput
	hasPositions bool
	exhausted    bool
	started      bool

	// Block header
	headerDecoded   bool
	numDocs         int
	lastDocId       codec.DocumentId
	maxFreq         uint64
	proxOffset      uint64
	nextBlockOffset int

	// Block data
	blockDecoded bool
	index        int
	blockDocIds  []codec.DocumentId
	blockFreqs   []uint32

	// Positions. proxDocIndex is the doc, in the block, whose positions
	// start at the prox cursor once proxDocRead of them are consumed.
	proxDocIndex  int
	proxDocRead   uint32
	positionsRead uint32
	position      uint32
}

func newPostingsEnum(file string, freqData, proxData []byte, hasPositions bool) *PostingsEnum {
	return &PostingsEnum{
		file:         file,
		freq:         store.NewDataInput(freqData),
		prox:         store.NewDataInput(proxData),
		hasPositions: hasPositions,
		blockDocIds:  make([]codec.DocumentId, 0, BlockSize),
		blockFreqs:   make([]uint32, 0, BlockSize),
	}
}

func (e *PostingsEnum) DocID() codec.DocumentId {
	if e.exhausted {
		return codec.NoMoreDocs
	}

	if !e.started {
		return 0
	}

	return e.blockDocIds[e.index]
}

func (e *PostingsEnum) Freq() uint32 {
	if !e.started || e.exhausted {
		return 0
	}

	return e.blockFreqs[e.index]
}

func (e *PostingsEnum) NextDoc() (codec.DocumentId, error) {
	if !e.started {
		return e.Advance(0)
	}

	if e.exhausted {
		return codec.NoMoreDocs, nil
	}

	return e.Advance(e.blockDocIds[e.index] + 1)
}

func (e *PostingsEnum) Advance(target codec.DocumentId) (codec.DocumentId, error) {
	if e.exhausted {
		return codec.NoMoreDocs, nil
	}

	exists, err := e.advanceShallow(target)
	if err != nil {
		return 0, err
	}

	if !exists {
		e.exhausted = true
		return codec.NoMoreDocs, nil
	}

	if !e.blockDecoded {
		if err := e.decodeBlock(); err != nil {
			return 0, err
		}
	}

	for ; e.index < e.numDocs; e.index++ {
		if target <= e.blockDocIds[e.index] {
			break
		}
	}

	e.started = true
	e.positionsRead = 0
	e.position = 0

	return e.blockDocIds[e.index], nil
}

// advanceShallow moves to the first block whose last doc is >= target,
// decoding only block headers.
func (e *PostingsEnum) advanceShallow(target codec.DocumentId) (bool, error) {
	for {
		if !e.headerDecoded {
			if e.freq.Len() == 0 {
				return false, nil
			}

			if err := e.decodeHeader(); err != nil {
				return false, err
			}
		}

		if target <= e.lastDocId {
			return true, nil
		}

		if err := e.freq.Seek(e.nextBlockOffset); err != nil {
			return false, e.corrupt(err)
		}

		e.headerDecoded = false
	}
}

func (e *PostingsEnum) decodeHeader() error {
	start := e.freq.Pos()

	header, err := e.freq.ReadBytes(blockHeaderSize)
	if err != nil {
		return e.corrupt(err)
	}

	numDocs := int(header[0])
	length := int(binary.BigEndian.Uint32(header[25:]))

	if numDocs == 0 || numDocs > BlockSize || length < blockHeaderSize {
		return e.corrupt(fmt.Errorf("bad block header at %d", start))
	}

	e.numDocs = numDocs
	e.lastDocId = codec.DocumentId(binary.BigEndian.Uint32(header[5:]))
	e.maxFreq = binary.BigEndian.Uint64(header[9:])
	e.proxOffset = binary.BigEndian.Uint64(header[17:])
	e.nextBlockOffset = start + length
	e.headerDecoded = true
	e.blockDecoded = false

	return nil
}

// blockMaxFreq is the highest frequency in the current block.
func (e *PostingsEnum) blockMaxFreq() uint64 {
	return e.maxFreq
}

func (e *PostingsEnum) decodeBlock() error {
	e.blockDocIds = e.blockDocIds[:e.numDocs]
	e.blockFreqs = e.blockFreqs[:e.numDocs]

	for i := 0; i < e.numDocs; i++ {
		value, err := e.freq.ReadUvarint()
		if err != nil {
			return e.corrupt(err)
		}

		if i == 0 {
			e.blockDocIds[i] = codec.DocumentId(value)
		} else {
			e.blockDocIds[i] = e.blockDocIds[i-1] + codec.DocumentId(value)
		}
	}

	for i := 0; i < e.numDocs; i++ {
		value, err := e.freq.ReadUvarint()
		if err != nil {
			return e.corrupt(err)
		}

		e.blockFreqs[i] = uint32(value)
	}

	if e.hasPositions {
		if err := e.prox.Seek(int(e.proxOffset)); err != nil {
			return e.corrupt(err)
		}
	}

	e.index = 0
	e.proxDocIndex = 0
	e.proxDocRead = 0
	e.blockDecoded = true

	return nil
}

// NextPosition returns io.EOF once every position of the current doc has
// been read.
func (e *PostingsEnum) NextPosition() (uint32, error) {
	if !e.hasPositions {
		return 0, codec.ErrPositionsNotIndexed
	}

	if !e.started || e.exhausted || e.positionsRead >= e.blockFreqs[e.index] {
		return 0, io.EOF
	}

	for e.proxDocIndex < e.index {
		for ; e.proxDocRead < e.blockFreqs[e.proxDocIndex]; e.proxDocRead++ {
			if _, err := e.prox.ReadUvarint(); err != nil {
				return 0, e.corrupt(err)
			}
		}

		e.proxDocIndex++
		e.proxDocRead = 0
	}

	delta, err := e.prox.ReadUvarint()
	if err != nil {
		return 0, e.corrupt(err)
	}

	e.position += uint32(delta)
	e.positionsRead++
	e.proxDocRead++

	return e.position, nil
}

func (e *PostingsEnum) corrupt(err error) error {
	return codec.NewCorruptIndexError(e.file, "%v", err)
}
