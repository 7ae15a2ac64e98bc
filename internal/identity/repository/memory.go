package repository

import (
	"context"
	"sync"

	"ridehail-identity/internal/identity/domain"
)

type linkKey struct {
	provider domain.Provider
	subject  string
}

// MemoryRepository is an in-process Repository for tests and single-instance development.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.Identity
	byPhone map[string]string
	byLink  map[linkKey]string
	order   []string
}

// NewMemoryRepository returns an empty in-memory account store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*domain.Identity),
		byPhone: make(map[string]string),
		byLink:  make(map[linkKey]string),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id), nil
}

func (r *MemoryRepository) GetByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(r.byPhone[phone]), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if i := r.byID[id]; i.Email != "" && i.Email == email {
			return clone(i), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetByLink(ctx context.Context, provider domain.Provider, subject string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(r.byLink[linkKey{provider, subject}]), nil
}

func (r *MemoryRepository) Create(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[i.ID]; ok {
		return ErrDuplicate
	}
	if i.Phone != "" {
		if _, ok := r.byPhone[i.Phone]; ok {
			return ErrDuplicate
		}
	}
	seen := make(map[domain.Provider]bool)
	for _, l := range i.Links {
		if _, ok := r.byLink[linkKey{l.Provider, l.Subject}]; ok || seen[l.Provider] {
			return ErrDuplicate
		}
		seen[l.Provider] = true
	}
	c := clone(i)
	r.byID[c.ID] = c
	r.order = append(r.order, c.ID)
	if c.Phone != "" {
		r.byPhone[c.Phone] = c.ID
	}
	for _, l := range c.Links {
		r.byLink[linkKey{l.Provider, l.Subject}] = c.ID
	}
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[i.ID]
	if !ok {
		return nil
	}
	if i.Phone != cur.Phone && i.Phone != "" {
		if owner, ok := r.byPhone[i.Phone]; ok && owner != i.ID {
			return ErrDuplicate
		}
	}
	if cur.Phone != "" && cur.Phone != i.Phone {
		delete(r.byPhone, cur.Phone)
	}
	if i.Phone != "" {
		r.byPhone[i.Phone] = i.ID
	}
	cur.Phone = i.Phone
	cur.Email = i.Email
	cur.PhoneVerified = i.PhoneVerified
	cur.EmailVerified = i.EmailVerified
	cur.Name = i.Name
	cur.Role = i.Role
	cur.Status = i.Status
	cur.UpdatedAt = i.UpdatedAt
	return nil
}

func (r *MemoryRepository) AddLink(ctx context.Context, identityID string, link domain.LinkedIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[identityID]
	if !ok {
		return nil
	}
	if _, taken := r.byLink[linkKey{link.Provider, link.Subject}]; taken {
		return ErrDuplicate
	}
	if _, has := cur.LinkFor(link.Provider); has {
		return ErrDuplicate
	}
	cur.Links = append(cur.Links, link)
	r.byLink[linkKey{link.Provider, link.Subject}] = identityID
	return nil
}

// get returns a copy of the account for id; caller holds mu.
func (r *MemoryRepository) get(id string) *domain.Identity {
	if id == "" {
		return nil
	}
	i, ok := r.byID[id]
	if !ok {
		return nil
	}
	return clone(i)
}

func clone(i *domain.Identity) *domain.Identity {
	c := *i
	c.Links = append([]domain.LinkedIdentity(nil), i.Links...)
	return &c
}
