package token

import (
	"context"
	"sync"
)

// MemoryRefreshTokenStore keeps refresh tokens in process memory. Suited
// to tests and single-instance deployments; production uses the
// PostgreSQL store.
type MemoryRefreshTokenStore struct {
	mu      sync.Mutex
	records map[string]*RefreshToken
}

var _ RefreshTokenStore = (*MemoryRefreshTokenStore)(nil)

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{records: make(map[string]*RefreshToken)}
}

func (s *MemoryRefreshTokenStore) Create(_ context.Context, tok *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.records[tok.ID] = &cp
	return nil
}

func (s *MemoryRefreshTokenStore) Find(_ context.Context, id string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryRefreshTokenStore) Rotate(_ context.Context, id string, successor *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Revoked {
		return ErrAlreadyRotated
	}
	rec.Revoked = true
	cp := *successor
	s.records[successor.ID] = &cp
	return nil
}

func (s *MemoryRefreshTokenStore) RevokeChain(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return nil
	}

	// Walk ancestors, then descendants. Chains are short (one link per
	// rotation), so a linear scan per hop is fine here.
	seen := map[string]bool{}
	frontier := []string{id}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		rec, ok := s.records[cur]
		if !ok {
			continue
		}
		rec.Revoked = true
		if rec.RotatedFrom != "" {
			frontier = append(frontier, rec.RotatedFrom)
		}
		for _, other := range s.records {
			if other.RotatedFrom == cur {
				frontier = append(frontier, other.ID)
			}
		}
	}
	return nil
}

func (s *MemoryRefreshTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
	return nil
}
