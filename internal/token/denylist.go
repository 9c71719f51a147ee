package token

import (
	"context"
	"sync"
	"time"
)

// DenyList records explicitly revoked access token ids. Entries become
// garbage once their expiry passes: an expired token already fails
// verification on that basis alone.
type DenyList interface {
	Insert(ctx context.Context, tokenID string, expiresAt time.Time) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenyList is the process-local default. Running multiple instances
// of the service requires the Redis-backed implementation instead.
type MemoryDenyList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenyList() *MemoryDenyList {
	return &MemoryDenyList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (d *MemoryDenyList) Insert(_ context.Context, tokenID string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gcLocked()
	d.entries[tokenID] = expiresAt
	return nil
}

func (d *MemoryDenyList) Contains(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	expiresAt, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if d.now().After(expiresAt) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDenyList) gcLocked() {
	now := d.now()
	for id, expiresAt := range d.entries {
		if now.After(expiresAt) {
			delete(d.entries, id)
		}
	}
}
