package repository

import (
	"context"
	"sort"
	"sync"

	"ridehail-identity/internal/audit/domain"
)

// MemoryRepository keeps audit events in process. Used by tests and the memory store backend.
type MemoryRepository struct {
	mu     sync.Mutex
	events []*domain.Event
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.events = append(r.events, &c)
	return nil
}

func (r *MemoryRepository) ListByIdentity(ctx context.Context, identityID string, limit int) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if e.IdentityID == identityID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every recorded event in insertion order.
func (r *MemoryRepository) All() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	for i, e := range r.events {
		out[i] = *e
	}
	return out
}
