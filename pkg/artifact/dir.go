package artifact

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir implements Store on top of a local directory. All paths are
// resolved relative to the configured root.
type Dir struct {
	root string
}

// NewDir creates a Dir store rooted at dir. The directory is created
// (with parents) if it does not already exist.
func NewDir(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory the store writes under.
func (d *Dir) Root() string {
	return d.root
}

// resolve turns a store path into an absolute filesystem path.
func (d *Dir) resolve(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(path))
}

// Put opens the named artifact for writing, creating parent directories
// as needed. An existing file is truncated.
func (d *Dir) Put(_ context.Context, path string) (io.WriteCloser, error) {
	full := d.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

// Open opens the named artifact for reading.
func (d *Dir) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(d.resolve(path))
}

// Exists reports whether the named artifact exists.
func (d *Dir) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(d.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove deletes the named artifact. Removing a missing artifact
// returns nil.
func (d *Dir) Remove(_ context.Context, path string) error {
	err := os.Remove(d.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

var _ Store = (*Dir)(nil)
