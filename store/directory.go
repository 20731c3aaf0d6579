package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// IOContext tells a Directory why a file is being opened.
type IOContext int

const (
	IOContextDefault IOContext = iota
	IOContextFlush
	IOContextRead
	// IOContextReadOnce reads the whole file into memory instead of mapping it.
	IOContextReadOnce
)

func (c IOContext) String() string {
	switch c {
	case IOContextDefault:
		return "default"
	case IOContextFlush:
		return "flush"
	case IOContextRead:
		return "read"
	case IOContextReadOnce:
		return "read-once"
	default:
		return fmt.Sprintf("IOContext(%d)", int(c))
	}
}

type Directory interface {
	// CreateOutput fails if name already exists.
	CreateOutput(name string, context IOContext) (*Output, error)
	OpenInput(name string, context IOContext) (*Input, error)
	Remove(name string) error
	ListAll() ([]string, error)
}

type FSDirectory struct {
	path string
}

func NewFSDirectory(path string) *FSDirectory {
	return &FSDirectory{path: path}
}

func (d *FSDirectory) Path() string {
	return d.path
}

func (d *FSDirectory) CreateOutput(name string, _ IOContext) (*Output, error) {
	file, err := os.OpenFile(filepath.Join(d.path, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}

	return NewOutput(name, file), nil
}

func (d *FSDirectory) OpenInput(name string, context IOContext) (*Input, error) {
	filename := filepath.Join(d.path, name)

	if context == IOContextReadOnce {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}

		return NewInput(name, data), nil
	}

	return mapInput(name, filename)
}

func (d *FSDirectory) Remove(name string) error {
	return os.Remove(filepath.Join(d.path, name))
}

func (d *FSDirectory) ListAll() ([]string, error) {
	dirEntries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if !dirEntry.Type().IsRegular() {
			continue
		}

		names = append(names, dirEntry.Name())
	}

	slices.Sort(names)

	return names, nil
}
