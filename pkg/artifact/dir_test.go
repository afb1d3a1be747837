package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	s, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDirPutAndOpen(t *testing.T) {
	s := newTestDir(t)
	ctx := context.Background()

	const data = "png bytes here"
	w, err := s.Put(ctx, "renders/job_1.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := s.Open(ctx, "renders/job_1.png")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != data {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestDirOpenNotExist(t *testing.T) {
	s := newTestDir(t)

	_, err := s.Open(context.Background(), "no-such-artifact")
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestDirExists(t *testing.T) {
	s := newTestDir(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false for missing artifact")
	}

	if err := WriteBytes(ctx, s, "present", []byte("x")); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, "present")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected true for existing artifact")
	}
}

func TestDirRemoveIdempotent(t *testing.T) {
	s := newTestDir(t)
	ctx := context.Background()

	if err := s.Remove(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}

	if err := WriteBytes(ctx, s, "tmp", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Exists(ctx, "tmp")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("artifact should be gone after remove")
	}

	if err := s.Remove(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
}

func TestDirPutTruncates(t *testing.T) {
	s := newTestDir(t)
	ctx := context.Background()

	if err := WriteBytes(ctx, s, "f", []byte("long content here")); err != nil {
		t.Fatal(err)
	}
	if err := WriteBytes(ctx, s, "f", []byte("short")); err != nil {
		t.Fatal(err)
	}

	got, err := ReadBytes(ctx, s, "f")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestNewDirCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
}
