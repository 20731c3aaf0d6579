package utils

import "encoding/binary"

// Uint32ToBytes encodes val big-endian, so encoded values sort like the
// numbers under bytes.Compare.
func Uint32ToBytes(val uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), val)
}
