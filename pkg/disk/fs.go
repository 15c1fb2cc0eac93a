package disk

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// File is the subset of *os.File a segment needs.
type File interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Sync() error
	Close() error
	Name() string
}

// FileSystem abstracts the directory operations segments and replay rely on.
type FileSystem interface {
	// Create makes a new file and fails if it already exists.
	Create(path string) (File, error)
	// OpenWritable opens an existing file for reading and writing.
	OpenWritable(path string) (File, error)
	// Open opens an existing file read-only.
	Open(path string) (File, error)
	Remove(path string) error
	Rename(oldPath, newPath string) error
	// ReadDir lists the names of regular files in dir, sorted.
	ReadDir(dir string) ([]string, error)
	MkdirAll(dir string) error
}

// OSFileSystem is the FileSystem backed by the os package.
type OSFileSystem struct{}

var _ FileSystem = OSFileSystem{}

func (OSFileSystem) Create(path string) (File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
}

func (OSFileSystem) OpenWritable(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR, 0o644)
}

func (OSFileSystem) Open(path string) (File, error) {
	return os.Open(path)
}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFileSystem) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OSFileSystem) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (OSFileSystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// IOError is an underlying filesystem failure on a segment.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
