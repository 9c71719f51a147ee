package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryAttemptStore is the process-local default. Entries are pruned
// lazily once their window has elapsed, so the map stays bounded by the
// number of keys active inside one window.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

var _ AttemptStore = (*MemoryAttemptStore)(nil)

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{entries: make(map[string]Entry)}
}

func (s *MemoryAttemptStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || now.Sub(entry.WindowStart) >= window {
		entry = Entry{WindowStart: now}
	}
	entry.Count++
	s.entries[key] = entry
	s.pruneLocked(now, window)
	return entry, nil
}

func (s *MemoryAttemptStore) Get(_ context.Context, key string, _ time.Time, _ time.Duration) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *MemoryAttemptStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryAttemptStore) pruneLocked(now time.Time, window time.Duration) {
	for key, entry := range s.entries {
		if now.Sub(entry.WindowStart) >= window {
			delete(s.entries, key)
		}
	}
}
