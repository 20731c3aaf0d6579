package codec

import (
	"errors"
	"fmt"
	"io"
)

type acquired struct {
	name   string
	closer io.Closer
}

// Assembly opens a fixed sequence of resources that only make sense
// together. If a step fails, everything acquired before it is closed in
// reverse order and the step's error is returned along with any
// ReleaseError. On success the caller calls Release to take ownership.
//
// A step that fails must not leave anything of its own open, and must not
// close the resources it was given.
type Assembly struct {
	resources []acquired
}

func Acquire[T io.Closer](assembly *Assembly, name string, open func() (T, error)) (T, error) {
	resource, err := open()
	if err != nil {
		var zero T
		return zero, assembly.rollback(fmt.Errorf("open %s: %w", name, err))
	}

	assembly.resources = append(assembly.resources, acquired{name: name, closer: resource})

	return resource, nil
}

// Release drops every acquired resource without closing it.
func (assembly *Assembly) Release() {
	assembly.resources = nil
}

// Rollback closes every acquired resource in reverse order. cause is
// reported first.
func (assembly *Assembly) Rollback(cause error) error {
	return assembly.rollback(cause)
}

func (assembly *Assembly) rollback(cause error) error {
	errs := []error{cause}

	for i := len(assembly.resources) - 1; i >= 0; i-- {
		resource := assembly.resources[i]
		if err := resource.closer.Close(); err != nil {
			errs = append(errs, &ReleaseError{Resource: resource.name, Err: err})
		}
	}

	assembly.resources = nil

	return errors.Join(errs...)
}

// CloseAll closes every closer, in order, and joins their errors. Nil
// closers are skipped.
func CloseAll(closers ...io.Closer) error {
	var errs []error

	for _, closer := range closers {
		if closer == nil {
			continue
		}

		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
