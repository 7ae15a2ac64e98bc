package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ridehail-identity/internal/otp/domain"
)

// PostgresRepository stores one row per target in otp_challenges (primary key target).
// Superseding reads the previous row FOR UPDATE and upserts inside one transaction; the
// upsert keeps its own cooldown guard so two first sends racing on an empty target still
// serialise on the ON CONFLICT row lock.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a code store that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const challengeColumns = `id, target, channel, code_hash, created_at, expires_at, attempts_used, max_attempts, consumed_at,
	array_to_string(superseded, ' '), sent_at`

const getCurrentChallenge = `SELECT ` + challengeColumns + ` FROM otp_challenges WHERE target = $1`

const supersedeChallenge = `
INSERT INTO otp_challenges (target, id, channel, code_hash, created_at, expires_at, attempts_used, max_attempts, consumed_at, superseded, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NULL, '{}', $5)
ON CONFLICT (target) DO UPDATE SET
	id = EXCLUDED.id,
	channel = EXCLUDED.channel,
	code_hash = EXCLUDED.code_hash,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at,
	attempts_used = 0,
	max_attempts = EXCLUDED.max_attempts,
	consumed_at = NULL,
	superseded = (ARRAY[otp_challenges.code_hash] || otp_challenges.superseded)[1:$9],
	sent_at = EXCLUDED.sent_at
WHERE GREATEST(otp_challenges.created_at, otp_challenges.sent_at) <= $8
RETURNING id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChallenge(row rowScanner) (*domain.Challenge, error) {
	var (
		c          domain.Challenge
		channel    string
		consumed   sql.NullTime
		superseded string
	)
	err := row.Scan(
		&c.ID, &c.Target, &channel, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.AttemptsUsed, &c.MaxAttempts,
		&consumed, &superseded, &c.SentAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Channel = domain.Channel(channel)
	c.Superseded = strings.Fields(superseded)
	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	return &c, nil
}

func (r *PostgresRepository) Supersede(ctx context.Context, c *domain.Challenge, cooldown time.Duration) (*domain.Challenge, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := scanChallenge(tx.QueryRowContext(ctx, getCurrentChallenge+` FOR UPDATE`, c.Target))
	if err != nil {
		return nil, err
	}
	if prev != nil && c.CreatedAt.Sub(prev.LastSendAt()) < cooldown {
		return nil, ErrCooldown
	}

	var id string
	err = tx.QueryRowContext(ctx, supersedeChallenge,
		c.Target, c.ID, string(c.Channel), c.CodeHash, c.CreatedAt, c.ExpiresAt, c.MaxAttempts,
		c.CreatedAt.Add(-cooldown), domain.MaxSuperseded,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCooldown
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return prev, nil
}

// GetCurrent returns the challenge for target, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetCurrent(ctx context.Context, target string) (*domain.Challenge, error) {
	return scanChallenge(r.db.QueryRowContext(ctx, getCurrentChallenge, target))
}

const recordFailure = `
UPDATE otp_challenges SET attempts_used = attempts_used + 1
WHERE target = $1 AND id = $2 AND consumed_at IS NULL AND attempts_used < max_attempts
RETURNING attempts_used`

func (r *PostgresRepository) RecordFailure(ctx context.Context, target, id string) (int, bool, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, recordFailure, target, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return attempts, true, nil
}

const consumeChallenge = `
UPDATE otp_challenges SET consumed_at = $3
WHERE target = $1 AND id = $2 AND consumed_at IS NULL AND attempts_used < max_attempts AND expires_at > $3`

func (r *PostgresRepository) Consume(ctx context.Context, target, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, consumeChallenge, target, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const restoreChallenge = `
UPDATE otp_challenges SET
	id = $3, channel = $4, code_hash = $5, created_at = $6, expires_at = $7,
	attempts_used = $8, max_attempts = $9, consumed_at = $10,
	superseded = string_to_array($11, ' '), sent_at = $12
WHERE target = $1 AND id = $2`

func (r *PostgresRepository) Restore(ctx context.Context, failed, prev *domain.Challenge) error {
	if prev == nil {
		_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE target = $1 AND id = $2`, failed.Target, failed.ID)
		return err
	}
	var consumed sql.NullTime
	if prev.ConsumedAt != nil {
		consumed = sql.NullTime{Time: *prev.ConsumedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, restoreChallenge,
		failed.Target, failed.ID,
		prev.ID, string(prev.Channel), prev.CodeHash, prev.CreatedAt, prev.ExpiresAt,
		prev.AttemptsUsed, prev.MaxAttempts, consumed,
		strings.Join(prev.Superseded, " "), failed.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
