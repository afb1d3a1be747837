package gallery

import (
	"context"
	"sync"
)

// Memory is an in-memory Index. It is safe for concurrent use and
// intended primarily for testing.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]Record
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory Index.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]Record)}
}

func (m *Memory) Add(_ context.Context, rec Record) error {
	m.mu.Lock()
	m.recs[rec.RequestID] = cloneRecord(rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, requestID string) (*Record, error) {
	m.mu.RLock()
	rec, ok := m.recs[requestID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneRecord(rec)
	return &cp, nil
}

func (m *Memory) Recent(_ context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	all := make([]Record, 0, len(m.recs))
	for _, rec := range m.recs {
		all = append(all, cloneRecord(rec))
	}
	m.mu.RUnlock()

	sortNewestFirst(all)
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (m *Memory) Remove(_ context.Context, requestID string) error {
	m.mu.Lock()
	delete(m.recs, requestID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// cloneRecord copies a record so callers cannot mutate stored state
// through the Keywords slice.
func cloneRecord(rec Record) Record {
	if rec.Keywords != nil {
		rec.Keywords = append([]string(nil), rec.Keywords...)
	}
	return rec
}
