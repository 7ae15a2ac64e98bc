package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process revocation set for tests and single-instance development.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]time.Time
}

// NewMemoryStore returns an empty in-memory revocation set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]time.Time)}
}

func (s *MemoryStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[jti]; ok {
		return false, nil
	}
	s.m[jti] = expiresAt
	return true, nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[jti]
	return ok, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for jti, exp := range s.m {
		if exp.Before(before) {
			delete(s.m, jti)
			n++
		}
	}
	return n, nil
}
