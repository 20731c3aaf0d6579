package codec

import (
	"errors"
	"fmt"
)

var (
	ErrTermNotFound        = errors.New("term not found")
	ErrFieldNotFound       = errors.New("field not found")
	ErrCorruptIndex        = errors.New("corrupt index")
	ErrTermOrder           = errors.New("terms out of order")
	ErrInvalidInterval     = errors.New("term index interval must be >= 1")
	ErrPositionsNotIndexed = errors.New("positions not indexed")
)

type CorruptIndexError struct {
	File   string
	Reason string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrCorruptIndex.Error(), e.File, e.Reason)
}

func (e *CorruptIndexError) Unwrap() error {
	return ErrCorruptIndex
}

func NewCorruptIndexError(file string, format string, args ...any) *CorruptIndexError {
	return &CorruptIndexError{
		File:   file,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ReleaseError reports a resource that failed to close while a failed
// construction was being rolled back. The resource may have leaked.
type ReleaseError struct {
	Resource string
	Err      error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %s", e.Resource, e.Err.Error())
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}
