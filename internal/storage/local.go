package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Local stores files below Root. Names are cleaned so they can never
// escape it.
type Local struct {
	Root string
}

// NewLocal returns a Local rooted at root.
func NewLocal(root string) *Local {
	return &Local{Root: root}
}

func (l *Local) resolve(name string) string {
	return filepath.Join(l.Root, filepath.FromSlash(path.Clean("/"+name)))
}

// EnsureDirectory creates dir below Root if it does not exist yet.
func (l *Local) EnsureDirectory(_ context.Context, dir string) error {
	if err := os.MkdirAll(l.resolve(dir), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrIO, dir, err)
	}
	return nil
}

// WriteFile writes data through a temp file and a rename, so readers never
// see a partial file.
func (l *Local) WriteFile(_ context.Context, name string, data []byte) error {
	dst := l.resolve(name)
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrIO, name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, name, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, name, err)
	}
	return nil
}

// DeleteFile removes name; a missing file is not an error.
func (l *Local) DeleteFile(_ context.Context, name string) error {
	if err := os.Remove(l.resolve(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrIO, name, err)
	}
	return nil
}
