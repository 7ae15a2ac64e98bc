// Package token issues, rotates and revokes access/refresh token pairs.
// Access tokens are verified statelessly; refresh tokens are single-use, enforced by the
// revocation set.
package token

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/security"
	"ridehail-identity/internal/token/repository"
)

// Pair is a freshly minted access and refresh token.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	IdentityID       string
	Role             string
}

// Service mints and rotates token pairs.
type Service struct {
	tokens  *security.TokenProvider
	revoked repository.Store
	now     func() time.Time
}

// NewService returns a Service that signs with tokens and records revocations in revoked.
func NewService(tokens *security.TokenProvider, revoked repository.Store) *Service {
	return &Service{
		tokens:  tokens,
		revoked: revoked,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Issue mints a new pair for the identity acting in role. New tokens are never pre-revoked.
func (s *Service) Issue(identityID, role string) (*Pair, error) {
	if identityID == "" || role == "" {
		return nil, apperr.Invalid("identity and role are required")
	}
	access, _, accessExp, err := s.tokens.IssueAccess(identityID, role)
	if err != nil {
		return nil, err
	}
	refresh, _, refreshExp, err := s.tokens.IssueRefresh(identityID, role)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		IdentityID:       identityID,
		Role:             role,
	}, nil
}

// Rotate exchanges a valid refresh token for a new pair bound to the same identity and role.
// The presented token is revoked by an atomic insert, so of two concurrent rotations of the
// same token exactly one succeeds and the other gets apperr.ErrRevoked.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	inserted, err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAtTime())
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.Warn().Str("identity_id", claims.Subject).Str("jti", claims.ID).Msg("token: rotated refresh token presented again")
		return nil, apperr.ErrRevoked
	}
	return s.Issue(claims.Subject, claims.Role)
}

// Revoke adds an access or refresh token to the revocation set. Revoking a token that is
// already revoked or already expired is a no-op success.
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return apperr.ErrInvalidToken
	}
	exp := claims.ExpiresAtTime()
	if !exp.After(s.now()) {
		return nil
	}
	_, err = s.revoked.Revoke(ctx, claims.ID, exp)
	return err
}

// VerifyAccess checks an access token's signature and expiry without any store lookup.
func (s *Service) VerifyAccess(token string) (*security.Claims, error) {
	claims, err := s.tokens.ValidateAccess(token)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccessNotRevoked is VerifyAccess plus a revocation lookup, for callers that must honour logout
// of the current access token.
func (s *Service) VerifyAccessNotRevoked(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := s.VerifyAccess(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.ErrRevoked
	}
	return claims, nil
}

// Purge drops revocation entries for tokens that expired before the cutoff.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return s.revoked.DeleteExpired(ctx, before)
}
