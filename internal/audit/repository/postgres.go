package repository

import (
	"context"
	"database/sql"

	"ridehail-identity/internal/audit/domain"
)

// PostgresRepository stores audit events in audit_logs.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists e. The event must have ID and CreatedAt set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, event_type, outcome, identity_id, target, channel, provider, app, reason, ip, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, string(e.Type), string(e.Outcome), nullString(e.IdentityID), nullString(e.Target),
		nullString(e.Channel), nullString(e.Provider), nullString(e.App), nullString(e.Reason),
		e.IP, nullString(e.UserAgent), e.CreatedAt)
	return err
}

// ListByIdentity returns the newest events for identityID, at most limit.
func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string, limit int) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, event_type, outcome, COALESCE(identity_id, ''), COALESCE(target, ''), COALESCE(channel, ''),
       COALESCE(provider, ''), COALESCE(app, ''), COALESCE(reason, ''), ip, COALESCE(user_agent, ''), created_at
FROM audit_logs WHERE identity_id = $1 ORDER BY created_at DESC LIMIT $2`, identityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var typ, outcome string
		if err := rows.Scan(&e.ID, &typ, &outcome, &e.IdentityID, &e.Target, &e.Channel,
			&e.Provider, &e.App, &e.Reason, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		e.Outcome = domain.Outcome(outcome)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
