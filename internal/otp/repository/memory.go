package repository

import (
	"context"
	"sync"
	"time"

	"ridehail-identity/internal/otp/domain"
)

// MemoryRepository is an in-process Repository for tests and single-instance development.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]domain.Challenge
}

// NewMemoryRepository returns an empty in-memory code store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.Challenge)}
}

func (r *MemoryRepository) Supersede(ctx context.Context, c *domain.Challenge, cooldown time.Duration) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := copyChallenge(c)
	next.Superseded = nil
	next.SentAt = c.CreatedAt
	var replaced *domain.Challenge
	if prev, ok := r.m[c.Target]; ok {
		if c.CreatedAt.Sub(prev.LastSendAt()) < cooldown {
			return nil, ErrCooldown
		}
		next.Superseded = prev.NextSuperseded()
		out := copyChallenge(&prev)
		replaced = &out
	}
	r.m[c.Target] = next
	return replaced, nil
}

func (r *MemoryRepository) GetCurrent(ctx context.Context, target string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[target]
	if !ok {
		return nil, nil
	}
	out := copyChallenge(&c)
	return &out, nil
}

func (r *MemoryRepository) RecordFailure(ctx context.Context, target, id string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[target]
	if !ok || c.ID != id || c.ConsumedAt != nil || c.AttemptsUsed >= c.MaxAttempts {
		return 0, false, nil
	}
	c.AttemptsUsed++
	r.m[target] = c
	return c.AttemptsUsed, true, nil
}

func (r *MemoryRepository) Consume(ctx context.Context, target, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[target]
	if !ok || c.ID != id || c.StateAt(now) != domain.StateActive {
		return false, nil
	}
	t := now
	c.ConsumedAt = &t
	r.m[target] = c
	return true, nil
}

func (r *MemoryRepository) Restore(ctx context.Context, failed, prev *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[failed.Target]
	if !ok || cur.ID != failed.ID {
		return nil
	}
	if prev == nil {
		delete(r.m, failed.Target)
		return nil
	}
	back := copyChallenge(prev)
	back.SentAt = failed.CreatedAt
	r.m[failed.Target] = back
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for target, c := range r.m {
		if c.ExpiresAt.Before(before) {
			delete(r.m, target)
			n++
		}
	}
	return n, nil
}

func copyChallenge(c *domain.Challenge) domain.Challenge {
	out := *c
	if c.ConsumedAt != nil {
		t := *c.ConsumedAt
		out.ConsumedAt = &t
	}
	if c.Superseded != nil {
		out.Superseded = append([]string(nil), c.Superseded...)
	}
	return out
}
