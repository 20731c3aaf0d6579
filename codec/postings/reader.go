package postings

import (
	"github.com/larose/tempblock/codec"
	"github.com/larose/tempblock/store"
)

type Reader struct {
	freqIn *store.Input
	proxIn *store.Input
}

func NewReader(directory store.Directory, fieldInfos *codec.FieldInfos, segment *codec.SegmentInfo, context store.IOContext, segmentSuffix string) (*Reader, error) {
	freqIn, err := openInput(directory, codec.SegmentFileName(segment.Name, segmentSuffix, FreqExtension), freqMagic, context)
	if err != nil {
		return nil, err
	}

	proxIn, err := openInput(directory, codec.SegmentFileName(segment.Name, segmentSuffix, ProxExtension), proxMagic, context)
	if err != nil {
		_ = freqIn.Close()
		return nil, err
	}

	return &Reader{
		freqIn: freqIn,
		proxIn: proxIn,
	}, nil
}

func openInput(directory store.Directory, name string, magic uint32, context store.IOContext) (*store.Input, error) {
	in, err := directory.OpenInput(name, context)
	if err != nil {
		return nil, err
	}

	header, err := in.Slice(0, min(in.Len(), codec.HeaderSize))
	if err != nil {
		_ = in.Close()
		return nil, err
	}

	if _, err := codec.CheckHeader(store.NewDataInput(header), name, magic, versionStart, versionCurrent); err != nil {
		_ = in.Close()
		return nil, err
	}

	return in, nil
}

func (r *Reader) Postings(field *codec.FieldInfo, state *codec.TermState) (codec.PostingsEnum, error) {
	meta := store.NewDataInput(state.Meta)

	var values [4]uint64
	for i := range values {
		value, err := meta.ReadUvarint()
		if err != nil {
			return nil, codec.NewCorruptIndexError(r.freqIn.Name(), "bad term metadata: %v", err)
		}
		values[i] = value
	}

	freqStart, freqLength, proxStart, proxLength := values[0], values[1], values[2], values[3]

	freqData, err := r.freqIn.Slice(freqStart, freqStart+freqLength)
	if err != nil {
		return nil, codec.NewCorruptIndexError(r.freqIn.Name(), "%v", err)
	}

	proxData, err := r.proxIn.Slice(proxStart, proxStart+proxLength)
	if err != nil {
		return nil, codec.NewCorruptIndexError(r.proxIn.Name(), "%v", err)
	}

	return newPostingsEnum(r.freqIn.Name(), freqData, proxData, field.IndexOptions.HasPositions()), nil
}

// Close closes the frequency file, then the positions file.
func (r *Reader) Close() error {
	return codec.CloseAll(r.freqIn, r.proxIn)
}
