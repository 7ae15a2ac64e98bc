// Package devotp holds plain codes by target for dev OTP mode (DevService/GetDevOtp).
// It is wired only when OTP_RETURN_TO_CLIENT is true, which config rejects in production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds the latest plain code per target for dev-only retrieval.
type Store interface {
	// Put stores code for target until expiresAt, replacing any previous code for that target.
	Put(ctx context.Context, target, code string, expiresAt time.Time)
	// Get returns the code for target if present and not expired.
	Get(ctx context.Context, target string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for target until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, target, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[target] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for target if present and not expired. Expired entries are dropped.
func (s *MemoryStore) Get(ctx context.Context, target string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[target]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		if cur, ok := s.m[target]; ok && cur == e {
			delete(s.m, target)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
