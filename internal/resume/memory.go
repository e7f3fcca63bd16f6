package resume

import (
	"context"
	"maps"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the snapshot in process memory. Nothing survives a
// restart; it is meant for tests and for running without persistence.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	saves   int

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMemoryStore returns a store pre-populated with entries.
func NewMemoryStore(entries map[string]Entry) *MemoryStore {
	return &MemoryStore{entries: maps.Clone(entries)}
}

// Load returns a copy of the current snapshot.
func (s *MemoryStore) Load(context.Context) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := maps.Clone(s.entries)
	if out == nil {
		out = map[string]Entry{}
	}
	return out, nil
}

// Save replaces the snapshot.
func (s *MemoryStore) Save(_ context.Context, entries map[string]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.entries = maps.Clone(entries)
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SetSaveErr changes SaveErr under the lock.
func (s *MemoryStore) SetSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveErr = err
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
