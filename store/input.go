package store

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Input is a read-only view of a whole file. Slices returned by an Input stay
// valid until Close and may be shared between goroutines.
type Input struct {
	closed bool
	data   []byte
	file   *os.File
	mapped mmap.MMap
	name   string
}

func NewInput(name string, data []byte) *Input {
	return &Input{
		data: data,
		name: name,
	}
}

func mapInput(name, filename string) (*Input, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	// Zero-length files cannot be mapped.
	if info.Size() == 0 {
		return &Input{file: file, name: name}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &Input{
		data:   data,
		file:   file,
		mapped: data,
		name:   name,
	}, nil
}

func (in *Input) Name() string {
	return in.name
}

func (in *Input) Len() uint64 {
	return uint64(len(in.data))
}

func (in *Input) Slice(start, end uint64) ([]byte, error) {
	if start > end || end > uint64(len(in.data)) {
		return nil, fmt.Errorf("%s: slice [%d:%d] out of bounds (length %d)", in.name, start, end, len(in.data))
	}

	return in.data[start:end], nil
}

func (in *Input) Close() error {
	if in.closed {
		return nil
	}
	in.closed = true
	in.data = nil

	if in.mapped != nil {
		if err := in.mapped.Unmap(); err != nil {
			if in.file != nil {
				_ = in.file.Close()
			}
			return err
		}
	}

	if in.file != nil {
		return in.file.Close()
	}

	return nil
}
