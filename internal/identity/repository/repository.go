package repository

import (
	"context"
	"errors"

	"ridehail-identity/internal/identity/domain"
)

// ErrDuplicate is returned when a write would break phone uniqueness or (provider, subject) uniqueness.
var ErrDuplicate = errors.New("identity: duplicate phone or linked identity")

// Repository defines persistence for accounts and their linked provider identities.
// Getters return (nil, nil) when nothing matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Identity, error)
	// GetByEmail returns the oldest account with the given (normalised) email.
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByLink(ctx context.Context, provider domain.Provider, subject string) (*domain.Identity, error)
	// Create persists the account together with its links.
	Create(ctx context.Context, i *domain.Identity) error
	// Update writes the mutable profile fields (phone, email, flags, name, role, status).
	Update(ctx context.Context, i *domain.Identity) error
	// AddLink attaches a provider identity to the account.
	AddLink(ctx context.Context, identityID string, link domain.LinkedIdentity) error
}
