package codec

import (
	"github.com/larose/tempblock/store"
)

const HeaderSize = 8

/*
Header:
  - [0] magic (uint32)
  - [4] version (uint32)
*/
func WriteHeader(out *store.Output, magic, version uint32) error {
	if err := out.WriteUint32(magic); err != nil {
		return err
	}

	return out.WriteUint32(version)
}

// CheckHeader reads a header written by WriteHeader and returns its version.
func CheckHeader(in *store.DataInput, file string, magic, minVersion, maxVersion uint32) (uint32, error) {
	actualMagic, err := in.ReadUint32()
	if err != nil {
		return 0, NewCorruptIndexError(file, "truncated header")
	}

	if actualMagic != magic {
		return 0, NewCorruptIndexError(file, "bad magic %#x, expected %#x", actualMagic, magic)
	}

	version, err := in.ReadUint32()
	if err != nil {
		return 0, NewCorruptIndexError(file, "truncated header")
	}

	if version < minVersion || version > maxVersion {
		return 0, NewCorruptIndexError(file, "unsupported version %d (supported %d..%d)", version, minVersion, maxVersion)
	}

	return version, nil
}
