// Package artifact stores render outputs: image bytes plus their JSON
// sidecar metadata. It abstracts the backing medium so a session can land
// on local disk or any S3-compatible object store without the render
// service caring which.
package artifact

import (
	"context"
	"io"
)

// Store is a minimal interface for artifact storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put opens the named artifact for writing. An existing artifact is
	// truncated. Parent directories are created automatically. The caller
	// must close the returned WriteCloser to flush data.
	Put(ctx context.Context, path string) (io.WriteCloser, error)

	// Open opens the named artifact for reading. The caller must close
	// the returned ReadCloser when done. If the artifact does not exist,
	// an error wrapping os.ErrNotExist is returned.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether the named artifact exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes the named artifact. Removing a missing artifact
	// returns nil.
	Remove(ctx context.Context, path string) error
}

// WriteBytes stores data under path in one call.
func WriteBytes(ctx context.Context, s Store, path string, data []byte) error {
	w, err := s.Put(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadBytes retrieves the full contents of the artifact at path.
func ReadBytes(ctx context.Context, s Store, path string) ([]byte, error) {
	r, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
