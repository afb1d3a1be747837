package gallery_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumenstage/stagewire/pkg/gallery"
)

// backends returns the Index implementations under test. Badger runs in
// memory-only mode so the suite exercises the real engine.
func backends(t *testing.T) map[string]gallery.Index {
	t.Helper()
	bdg, err := gallery.NewBadger(gallery.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { bdg.Close() })
	return map[string]gallery.Index{
		"memory": gallery.NewMemory(),
		"badger": bdg,
	}
}

func testRecord(id string, created time.Time) gallery.Record {
	return gallery.Record{
		RequestID: id,
		Prompt:    "a lighthouse at dusk",
		Negative:  "blurry",
		ImagePath: "renders/" + id + ".png",
		Keywords:  []string{"lighthouse", "dusk"},
		Elapsed:   4200,
		CreatedAt: created,
	}
}

func TestIndexAddGetRemove(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := idx.Get(ctx, "job_1")
			if !errors.Is(err, gallery.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			want := testRecord("job_1", time.Now().UTC())
			if err := idx.Add(ctx, want); err != nil {
				t.Fatalf("Add: %v", err)
			}

			got, err := idx.Get(ctx, "job_1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Prompt != want.Prompt || got.Negative != want.Negative {
				t.Fatalf("Get = %+v, want %+v", got, want)
			}
			if got.ImagePath != "renders/job_1.png" {
				t.Fatalf("ImagePath = %q", got.ImagePath)
			}
			if !got.CreatedAt.Equal(want.CreatedAt) {
				t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
			}
			if len(got.Keywords) != 2 || got.Keywords[0] != "lighthouse" {
				t.Fatalf("Keywords = %v", got.Keywords)
			}

			if err := idx.Remove(ctx, "job_1"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, err := idx.Get(ctx, "job_1"); !errors.Is(err, gallery.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after remove, got %v", err)
			}

			// Removing a missing record is not an error.
			if err := idx.Remove(ctx, "job_ghost"); err != nil {
				t.Fatalf("Remove missing: %v", err)
			}
		})
	}
}

func TestIndexOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := testRecord("job_1", time.Now().UTC())
			if err := idx.Add(ctx, rec); err != nil {
				t.Fatalf("Add: %v", err)
			}
			rec.Prompt = "a lighthouse at dawn"
			if err := idx.Add(ctx, rec); err != nil {
				t.Fatalf("Add overwrite: %v", err)
			}

			got, err := idx.Get(ctx, "job_1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Prompt != "a lighthouse at dawn" {
				t.Fatalf("Prompt = %q, want overwritten value", got.Prompt)
			}

			recent, err := idx.Recent(ctx, 10)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(recent) != 1 {
				t.Fatalf("Recent after overwrite: got %d records, want 1", len(recent))
			}
		})
	}
}

func TestIndexRecent(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Insertion order deliberately scrambled relative to time.
			for _, i := range []int{3, 1, 5, 2, 4} {
				rec := testRecord("job_"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
				if err := idx.Add(ctx, rec); err != nil {
					t.Fatalf("Add: %v", err)
				}
			}

			recent, err := idx.Recent(ctx, 3)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			var ids []string
			for _, r := range recent {
				ids = append(ids, r.RequestID)
			}
			if got := strings.Join(ids, ","); got != "job_5,job_4,job_3" {
				t.Fatalf("Recent(3) = %s, want job_5,job_4,job_3", got)
			}

			all, err := idx.Recent(ctx, 10)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("Recent(10): got %d records, want 5", len(all))
			}
			if all[0].RequestID != "job_5" || all[4].RequestID != "job_1" {
				t.Fatalf("Recent(10) order: %v", all)
			}

			none, err := idx.Recent(ctx, 0)
			if err != nil {
				t.Fatalf("Recent(0): %v", err)
			}
			if len(none) != 0 {
				t.Fatalf("Recent(0) = %v, want empty", none)
			}
		})
	}
}

func TestBadgerDirRequired(t *testing.T) {
	_, err := gallery.NewBadger(gallery.BadgerOptions{
		Dir:      "",
		InMemory: false,
	})
	if err == nil {
		t.Fatal("expected error for empty Dir in on-disk mode")
	}
	if !strings.Contains(err.Error(), "Dir is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBadgerReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := gallery.NewBadger(gallery.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	rec := testRecord("job_1", time.Now().UTC())
	if err := idx.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = gallery.NewBadger(gallery.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	got, err := idx.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Prompt != rec.Prompt {
		t.Fatalf("Prompt = %q, want %q", got.Prompt, rec.Prompt)
	}
}
