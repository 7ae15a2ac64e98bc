package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"ridehail-identity/internal/identity/domain"
)

// PostgresRepository stores accounts in accounts and provider links in linked_identities.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectAccount = `
SELECT a.id, a.phone, a.email, a.phone_verified, a.email_verified, a.name, a.role, a.status, a.created_at, a.updated_at
FROM accounts a`

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, selectAccount+` WHERE a.id = $1`, id)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	return r.getOne(ctx, selectAccount+` WHERE a.phone = $1`, phone)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.getOne(ctx, selectAccount+` WHERE a.email = $1 ORDER BY a.created_at LIMIT 1`, email)
}

func (r *PostgresRepository) GetByLink(ctx context.Context, provider domain.Provider, subject string) (*domain.Identity, error) {
	return r.getOne(ctx, selectAccount+`
JOIN linked_identities l ON l.account_id = a.id
WHERE l.provider = $1 AND l.subject = $2`, string(provider), subject)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Identity, error) {
	var (
		i            domain.Identity
		phone, email sql.NullString
		role, status string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&i.ID, &phone, &email, &i.PhoneVerified, &i.EmailVerified, &i.Name, &role, &status, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Phone = phone.String
	i.Email = email.String
	i.Role = domain.Role(role)
	i.Status = domain.Status(status)
	links, err := r.links(ctx, i.ID)
	if err != nil {
		return nil, err
	}
	i.Links = links
	return &i, nil
}

func (r *PostgresRepository) links(ctx context.Context, accountID string) ([]domain.LinkedIdentity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider, subject, email, linked_at FROM linked_identities WHERE account_id = $1 ORDER BY linked_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.LinkedIdentity
	for rows.Next() {
		var (
			l        domain.LinkedIdentity
			provider string
			email    sql.NullString
		)
		if err := rows.Scan(&provider, &l.Subject, &email, &l.LinkedAt); err != nil {
			return nil, err
		}
		l.Provider = domain.Provider(provider)
		l.Email = email.String
		out = append(out, l)
	}
	return out, rows.Err()
}

const insertAccount = `
INSERT INTO accounts (id, phone, email, phone_verified, email_verified, name, role, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertLink = `
INSERT INTO linked_identities (provider, subject, account_id, email, linked_at)
VALUES ($1, $2, $3, $4, $5)`

// Create persists the account and its links in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, insertAccount,
		i.ID, nullString(i.Phone), nullString(i.Email), i.PhoneVerified, i.EmailVerified, i.Name,
		string(i.Role), string(i.Status), i.CreatedAt, i.UpdatedAt,
	); err != nil {
		return mapUnique(err)
	}
	for _, l := range i.Links {
		if _, err := tx.ExecContext(ctx, insertLink, string(l.Provider), l.Subject, i.ID, nullString(l.Email), l.LinkedAt); err != nil {
			return mapUnique(err)
		}
	}
	return tx.Commit()
}

const updateAccount = `
UPDATE accounts SET phone = $2, email = $3, phone_verified = $4, email_verified = $5, name = $6,
	role = $7, status = $8, updated_at = $9
WHERE id = $1`

func (r *PostgresRepository) Update(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx, updateAccount,
		i.ID, nullString(i.Phone), nullString(i.Email), i.PhoneVerified, i.EmailVerified, i.Name,
		string(i.Role), string(i.Status), i.UpdatedAt,
	)
	return mapUnique(err)
}

func (r *PostgresRepository) AddLink(ctx context.Context, identityID string, link domain.LinkedIdentity) error {
	_, err := r.db.ExecContext(ctx, insertLink, string(link.Provider), link.Subject, identityID, nullString(link.Email), link.LinkedAt)
	return mapUnique(err)
}

// mapUnique turns a Postgres unique_violation into ErrDuplicate.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
