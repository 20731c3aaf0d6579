package store

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DataInput decodes big-endian integers, uvarints and raw bytes from a byte
// slice. It is cheap to create and is not safe for concurrent use.
type DataInput struct {
	data []byte
	pos  int
}

func NewDataInput(data []byte) *DataInput {
	return &DataInput{data: data}
}

func (in *DataInput) Pos() int {
	return in.pos
}

func (in *DataInput) Len() int {
	return len(in.data) - in.pos
}

func (in *DataInput) Seek(pos int) error {
	if pos < 0 || pos > len(in.data) {
		return fmt.Errorf("seek to %d out of bounds (length %d)", pos, len(in.data))
	}

	in.pos = pos
	return nil
}

func (in *DataInput) ReadByte() (byte, error) {
	if in.pos >= len(in.data) {
		return 0, io.ErrUnexpectedEOF
	}

	b := in.data[in.pos]
	in.pos++
	return b, nil
}

func (in *DataInput) ReadUint32() (uint32, error) {
	if in.Len() < 4 {
		return 0, io.ErrUnexpectedEOF
	}

	value := binary.BigEndian.Uint32(in.data[in.pos:])
	in.pos += 4
	return value, nil
}

func (in *DataInput) ReadUint64() (uint64, error) {
	if in.Len() < 8 {
		return 0, io.ErrUnexpectedEOF
	}

	value := binary.BigEndian.Uint64(in.data[in.pos:])
	in.pos += 8
	return value, nil
}

func (in *DataInput) ReadUvarint() (uint64, error) {
	value, n := binary.Uvarint(in.data[in.pos:])
	if n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if n < 0 {
		return 0, fmt.Errorf("uvarint overflow at offset %d", in.pos)
	}

	in.pos += n
	return value, nil
}

// ReadBytes returns the next n bytes without copying them.
func (in *DataInput) ReadBytes(n int) ([]byte, error) {
	if n < 0 || in.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}

	value := in.data[in.pos : in.pos+n]
	in.pos += n
	return value, nil
}

func (in *DataInput) Skip(n int) error {
	_, err := in.ReadBytes(n)
	return err
}
