// Package repository stores the revocation set: ids (jti) of tokens that must be rejected
// even though their signature and expiry are valid.
package repository

import (
	"context"
	"time"
)

// Store is the revocation set. Entries may be dropped once expiresAt has passed,
// since an expired token is rejected on its own.
type Store interface {
	// Revoke adds jti to the set. inserted is false if it was already present; the
	// check and the insert are one atomic step so concurrent callers see exactly one true.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (inserted bool, err error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// DeleteExpired purges entries whose token expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
