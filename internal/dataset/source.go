package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is an uploaded file handle. Grouping inspects only Name; bytes are read on demand.
type Source interface {
	Name() string
	Size() int64
	Bytes() ([]byte, error)
}

// FileSource reads its bytes from disk.
type FileSource struct {
	path string
	size int64
}

// NewFileSource stats path and returns a handle for it.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileSource{path: path, size: info.Size()}, nil
}

func (f *FileSource) Name() string           { return filepath.Base(f.path) }
func (f *FileSource) Size() int64            { return f.size }
func (f *FileSource) Bytes() ([]byte, error) { return os.ReadFile(f.path) }

// Path returns the file location on disk.
func (f *FileSource) Path() string { return f.path }

// MemorySource holds its bytes in memory.
type MemorySource struct {
	name string
	data []byte
}

// NewMemorySource wraps data under name.
func NewMemorySource(name string, data []byte) *MemorySource {
	return &MemorySource{name: name, data: data}
}

func (m *MemorySource) Name() string           { return m.name }
func (m *MemorySource) Size() int64            { return int64(len(m.data)) }
func (m *MemorySource) Bytes() ([]byte, error) { return m.data, nil }

// Ext returns the lower-case extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Stem returns the base name without its extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
