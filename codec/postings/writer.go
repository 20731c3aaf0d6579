package postings

import (
	"encoding/binary"
	"fmt"

	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

const (
	// FreqExtension is the file holding doc ids and frequencies.
	FreqExtension = "frq"
	// ProxExtension is the file holding positions.
	ProxExtension = "prx"

	freqMagic uint32 = 0x54465251
	proxMagic uint32 = 0x54505258

	versionStart   uint32 = 1
	versionCurrent        = versionStart

	BlockSize = 128
)

/*
Block:
  - Header:
	- [0] num docs (byte)
	- [1] first doc id (uint32)
	- [5] last doc id (uint32)
	- [9] max term freq (uint64), not read by lookups
	- [17] prox offset from the term's first position (uint64)
	- [25] length bytes (uint32)
  - Doc id deltas (uvarint)
  - Term freqs (uvarint)
*/
const blockHeaderSize = 29

type Writer struct {
	field   *codec.FieldInfo
	freqOut *store.Output
	proxOut *store.Output

	// Current term
	termFreqStart uint64
	termProxStart uint64
	termDocs      uint32
	lastDocId     codec.DocumentId

	// Pending block
	blockDocIds    []uint32
	blockFreqs     []uint64
	blockProxStart uint64

	// Current doc
	docFreq      uint32
	docPositions uint32
	lastPosition uint32

	buffer []byte
}

func NewWriter(state *codec.SegmentWriteState) (*Writer, error) {
	freqName := codec.SegmentFileName(state.Segment.Name, state.SegmentSuffix, FreqExtension)
	proxName := codec.SegmentFileName(state.Segment.Name, state.SegmentSuffix, ProxExtension)

	freqOut, err := state.Directory.CreateOutput(freqName, state.Context)
	if err != nil {
		return nil, err
	}

	if err := codec.WriteHeader(freqOut, freqMagic, versionCurrent); err != nil {
		_ = freqOut.Close()
		return nil, err
	}

	proxOut, err := state.Directory.CreateOutput(proxName, state.Context)
	if err != nil {
		_ = freqOut.Close()
		return nil, err
	}

	if err := codec.WriteHeader(proxOut, proxMagic, versionCurrent); err != nil {
		_ = freqOut.Close()
		_ = proxOut.Close()
		return nil, err
	}

	return &Writer{
		freqOut:     freqOut,
		proxOut:     proxOut,
		blockDocIds: make([]uint32, 0, BlockSize),
		blockFreqs:  make([]uint64, 0, BlockSize),
		buffer:      make([]byte, 0, BlockSize*2*binary.MaxVarintLen32+blockHeaderSize),
	}, nil
}

func (w *Writer) SetField(field *codec.FieldInfo) {
	w.field = field
}

func (w *Writer) StartTerm() error {
	if w.field == nil {
		return fmt.Errorf("postings: StartTerm called before SetField")
	}

	w.termFreqStart = w.freqOut.Offset()
	w.termProxStart = w.proxOut.Offset()
	w.termDocs = 0
	w.blockDocIds = w.blockDocIds[:0]
	w.blockFreqs = w.blockFreqs[:0]

	return nil
}

func (w *Writer) StartDoc(docId codec.DocumentId, freq uint32) error {
	if docId == codec.NoMoreDocs {
		return fmt.Errorf("postings: invalid doc id %d", docId)
	}

	if w.termDocs > 0 && docId <= w.lastDocId {
		return fmt.Errorf("postings: doc ids out of order (%d after %d)", docId, w.lastDocId)
	}

	if len(w.blockDocIds) == 0 {
		w.blockProxStart = w.proxOut.Offset()
	}

	w.blockDocIds = append(w.blockDocIds, uint32(docId))
	w.blockFreqs = append(w.blockFreqs, uint64(freq))
	w.lastDocId = docId
	w.termDocs++

	w.docFreq = freq
	w.docPositions = 0
	w.lastPosition = 0

	return nil
}

func (w *Writer) AddPosition(position uint32) error {
	if !w.field.IndexOptions.HasPositions() {
		return nil
	}

	if w.docPositions >= w.docFreq {
		return fmt.Errorf("postings: doc %d has more than %d positions", w.lastDocId, w.docFreq)
	}

	if w.docPositions > 0 && position < w.lastPosition {
		return fmt.Errorf("postings: positions out of order (%d after %d)", position, w.lastPosition)
	}

	if err := w.proxOut.WriteUvarint(uint64(position - w.lastPosition)); err != nil {
		return err
	}

	w.lastPosition = position
	w.docPositions++

	return nil
}

func (w *Writer) FinishDoc() error {
	if w.field.IndexOptions.HasPositions() && w.docPositions != w.docFreq {
		return fmt.Errorf("postings: doc %d has %d positions, expected %d", w.lastDocId, w.docPositions, w.docFreq)
	}

	if len(w.blockDocIds) == BlockSize {
		return w.writeBlock()
	}

	return nil
}

func (w *Writer) FinishTerm(stats codec.TermStats) ([]byte, error) {
	if len(w.blockDocIds) > 0 {
		if err := w.writeBlock(); err != nil {
			return nil, err
		}
	}

	if w.termDocs == 0 {
		return nil, fmt.Errorf("postings: term has no documents")
	}

	if stats.DocFreq != w.termDocs {
		return nil, fmt.Errorf("postings: term doc freq is %d but %d docs were written", stats.DocFreq, w.termDocs)
	}

	meta := make([]byte, 0, 4*binary.MaxVarintLen64)
	meta = binary.AppendUvarint(meta, w.termFreqStart)
	meta = binary.AppendUvarint(meta, w.freqOut.Offset()-w.termFreqStart)
	meta = binary.AppendUvarint(meta, w.termProxStart)
	meta = binary.AppendUvarint(meta, w.proxOut.Offset()-w.termProxStart)

	return meta, nil
}

func (w *Writer) writeBlock() error {
	docIds := w.blockDocIds
	termFreqs := w.blockFreqs

	buffer := w.buffer[:0]

	buffer = append(buffer, byte(len(docIds)))
	buffer = binary.BigEndian.AppendUint32(buffer, docIds[0])
	buffer = binary.BigEndian.AppendUint32(buffer, docIds[len(docIds)-1])
	buffer = binary.BigEndian.AppendUint64(buffer, 0) // maxFreq
	buffer = binary.BigEndian.AppendUint64(buffer, w.blockProxStart-w.termProxStart)
	buffer = binary.BigEndian.AppendUint32(buffer, 0) // length

	previous := uint32(0)
	for i, docId := range docIds {
		if i == 0 {
			buffer = binary.AppendUvarint(buffer, uint64(docId))
		} else {
			buffer = binary.AppendUvarint(buffer, uint64(docId-previous))
		}
		previous = docId
	}

	maxFreq := uint64(0)

	for _, termFreq := range termFreqs {
		buffer = binary.AppendUvarint(buffer, termFreq)

		if termFreq > maxFreq {
			maxFreq = termFreq
		}
	}

	binary.BigEndian.PutUint64(buffer[9:], maxFreq)
	binary.BigEndian.PutUint32(buffer[25:], uint32(len(buffer)))

	w.buffer = buffer
	w.blockDocIds = w.blockDocIds[:0]
	w.blockFreqs = w.blockFreqs[:0]

	_, err := w.freqOut.Write(buffer)
	return err
}

// Close closes the frequency file, then the positions file.
func (w *Writer) Close() error {
	return codec.CloseAll(w.freqOut, w.proxOut)
}
