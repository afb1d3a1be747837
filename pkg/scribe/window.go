package scribe

import (
	"sync"
	"time"
)

// Window is a rolling record of recent chunks, bounded by entry count and
// by age. Snapshots drop entries older than the horizon; the count bound
// caps memory when chunks arrive faster than they age out.
type Window struct {
	mu      sync.Mutex
	horizon time.Duration
	max     int
	entries []windowEntry
}

type windowEntry struct {
	text string
	at   time.Time
}

// NewWindow returns a window keeping up to max entries no older than
// horizon. Non-positive arguments select 60s and 20 entries.
func NewWindow(horizon time.Duration, max int) *Window {
	if horizon <= 0 {
		horizon = time.Minute
	}
	if max <= 0 {
		max = 20
	}
	return &Window{horizon: horizon, max: max}
}

// Add records a chunk observed at the given time.
func (w *Window) Add(text string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, windowEntry{text: text, at: at})
	if len(w.entries) > w.max {
		w.entries = append(w.entries[:0], w.entries[len(w.entries)-w.max:]...)
	}
}

// Snapshot returns the texts still inside the horizon as of now, oldest
// first.
func (w *Window) Snapshot(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.horizon)
	var out []string
	for _, e := range w.entries {
		if e.at.Before(cutoff) {
			continue
		}
		out = append(out, e.text)
	}
	return out
}

// Horizon returns the current age bound.
func (w *Window) Horizon() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.horizon
}

// SetHorizon replaces the age bound. Non-positive values are ignored.
func (w *Window) SetHorizon(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.horizon = d
}
