package store

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Output is a buffered, append-only file that tracks its own offset.
type Output struct {
	closed  bool
	closer  io.Closer
	name    string
	offset  uint64
	scratch [binary.MaxVarintLen64]byte
	writer  *bufio.Writer
}

func NewOutput(name string, w io.WriteCloser) *Output {
	return &Output{
		closer: w,
		name:   name,
		writer: bufio.NewWriter(w),
	}
}

func (out *Output) Name() string {
	return out.name
}

func (out *Output) Offset() uint64 {
	return out.offset
}

func (out *Output) Write(data []byte) (int, error) {
	n, err := out.writer.Write(data)
	out.offset += uint64(n)
	return n, err
}

func (out *Output) WriteByte(b byte) error {
	if err := out.writer.WriteByte(b); err != nil {
		return err
	}

	out.offset++
	return nil
}

func (out *Output) WriteUint32(value uint32) error {
	binary.BigEndian.PutUint32(out.scratch[:4], value)
	_, err := out.Write(out.scratch[:4])
	return err
}

func (out *Output) WriteUint64(value uint64) error {
	binary.BigEndian.PutUint64(out.scratch[:8], value)
	_, err := out.Write(out.scratch[:8])
	return err
}

func (out *Output) WriteUvarint(value uint64) error {
	n := binary.PutUvarint(out.scratch[:], value)
	_, err := out.Write(out.scratch[:n])
	return err
}

// Close flushes and closes the underlying file. Calling it again is a no-op.
func (out *Output) Close() error {
	if out.closed {
		return nil
	}
	out.closed = true

	if err := out.writer.Flush(); err != nil {
		_ = out.closer.Close()
		return err
	}

	return out.closer.Close()
}
