package repository

import (
	"context"

	"ridehail-identity/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]*domain.Event, error)
}
