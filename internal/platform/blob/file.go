package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var fileNameReplacer = strings.NewReplacer(":", ".", "/", "_", "\\", "_")

// File stores each document as <dir>/<key>.json so state survives between processes.
type File struct {
	mu  sync.Mutex
	dir string
}

// NewFile ensures dir exists and returns a store rooted there.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("blob: file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

// Path returns the file backing key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, fileNameReplacer.Replace(key)+".json")
}

// Get reads the document at key.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put replaces the document at key atomically via temp file and rename.
func (f *File) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp, err := os.CreateTemp(f.dir, ".blob-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path(key))
}
