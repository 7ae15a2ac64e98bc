package repository

import (
	"context"
	"errors"
	"time"

	"ridehail-identity/internal/otp/domain"
)

// ErrCooldown is returned by Supersede when the target's current challenge was created within the cooldown window.
var ErrCooldown = errors.New("otp: send cooldown active for target")

// Repository is the code store: durable record of the current challenge per target.
// Every mutating method is atomic per target; none of them hold locks across caller I/O.
type Repository interface {
	// Supersede stores c as the current challenge for c.Target, replacing any previous one
	// regardless of channel, and returns the replaced challenge (nil if there was none). It fails
	// with ErrCooldown, storing nothing, if the last send to the target was less than cooldown
	// before c.CreatedAt.
	Supersede(ctx context.Context, c *domain.Challenge, cooldown time.Duration) (prev *domain.Challenge, err error)
	// GetCurrent returns the current challenge for target in whatever state it is in, or nil if none.
	GetCurrent(ctx context.Context, target string) (*domain.Challenge, error)
	// RecordFailure increments attempts_used of challenge id if it is still current, unconsumed and
	// below max_attempts. Returns the new attempt count, or ok=false when the guard did not hold.
	RecordFailure(ctx context.Context, target, id string) (attempts int, ok bool, err error)
	// Consume marks challenge id consumed if it is still current, unconsumed, unlocked and unexpired at now.
	Consume(ctx context.Context, target, id string, now time.Time) (bool, error)
	// Restore undoes a Supersede whose delivery failed. If failed is still current, prev becomes
	// current again exactly as it was (attempts, consumption, superseded hashes) with SentAt set to
	// failed.CreatedAt, so the cooldown still counts from the failed attempt. A nil prev removes
	// failed. Does nothing when another send has replaced failed since.
	Restore(ctx context.Context, failed, prev *domain.Challenge) error
	// DeleteExpired purges challenges that expired before the cutoff. Returns how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
