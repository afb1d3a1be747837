// Package gallery indexes completed render jobs so operators can list
// and inspect what a session has produced.
//
// An [Index] stores one [Record] per render job, keyed by request ID.
// The badger-backed implementation persists across restarts; the
// in-memory implementation backs tests and ephemeral sessions. Services
// treat the index as optional and run without one.
package gallery

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when a request ID has no record.
var ErrNotFound = errors.New("gallery: not found")

// Record describes one completed render job.
type Record struct {
	// RequestID is the render job identifier (e.g. "job_01hx9k2e").
	RequestID string `json:"request_id" yaml:"request_id" msgpack:"request_id"`

	// Prompt is the positive prompt the image was generated from.
	Prompt string `json:"prompt" yaml:"prompt" msgpack:"prompt"`

	// Negative is the negative prompt, if any.
	Negative string `json:"negative_prompt,omitempty" yaml:"negative_prompt,omitempty" msgpack:"negative_prompt,omitempty"`

	// ImagePath is the artifact path of the stored image.
	ImagePath string `json:"image_path" yaml:"image_path" msgpack:"image_path"`

	// Keywords are the topic terms that fed the prompt.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty" msgpack:"keywords,omitempty"`

	// Elapsed is the render duration in milliseconds.
	Elapsed int64 `json:"elapsed_ms" yaml:"elapsed_ms" msgpack:"elapsed_ms"`

	// CreatedAt is when the job completed.
	CreatedAt time.Time `json:"created_at" yaml:"created_at" msgpack:"created_at"`
}

// Index stores render job records.
type Index interface {
	// Add stores a record, overwriting any record with the same request ID.
	Add(ctx context.Context, rec Record) error

	// Get retrieves a record by request ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, requestID string) (*Record, error)

	// Recent returns up to n records, newest first by creation time.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Remove deletes a record. No error if the request ID does not exist.
	Remove(ctx context.Context, requestID string) error

	// Close releases resources held by the index.
	Close() error
}

// sortNewestFirst orders records by CreatedAt descending, breaking ties
// by request ID for determinism.
func sortNewestFirst(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].RequestID > recs[j].RequestID
	})
}
