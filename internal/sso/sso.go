// Package sso verifies third-party identity tokens (Google, Apple, Facebook) and hands the
// verified subject to the identity resolver. One Verifier per provider; nothing outside this
// package branches on the provider.
package sso

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/identity/domain"
)

// VerifiedClaims is what a provider vouches for about the token holder.
type VerifiedClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Phone         string
	PhoneVerified bool
}

// Verifier checks one provider's token. Implementations return apperr.ErrInvalidProviderToken
// when the token is bad and apperr.ErrProviderUnavailable when the provider could not be reached.
type Verifier interface {
	Verify(ctx context.Context, token string) (*VerifiedClaims, error)
}

// Registry maps each provider to its verifier.
type Registry map[domain.Provider]Verifier

// Resolver is the part of the identity resolver the bridge needs.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, criteria domain.Criteria) (*domain.Identity, error)
}

// Bridge authenticates a provider token and maps it to a local account.
type Bridge struct {
	verifiers Registry
	resolver  Resolver
	timeout   time.Duration
}

// NewBridge returns a Bridge. timeout bounds each provider verification call.
func NewBridge(verifiers Registry, resolver Resolver, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Bridge{verifiers: verifiers, resolver: resolver, timeout: timeout}
}

// Providers reports which providers have a verifier configured.
func (b *Bridge) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(b.verifiers))
	for p := range b.verifiers {
		out = append(out, p)
	}
	return out
}

// Authenticate verifies token with provider and resolves the account it belongs to.
// Provider failures are not retried here.
func (b *Bridge) Authenticate(ctx context.Context, provider domain.Provider, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, apperr.Invalid("provider token is required")
	}
	v, ok := b.verifiers[provider]
	if !ok || v == nil {
		return nil, apperr.Invalid("provider " + string(provider) + " is not enabled")
	}
	vctx, cancel := context.WithTimeout(ctx, b.timeout)
	claims, err := v.Verify(vctx, token)
	cancel()
	if err != nil {
		err = classify(err)
		if errors.Is(err, apperr.ErrProviderUnavailable) {
			log.Warn().Err(err).Str("provider", string(provider)).Msg("sso: provider unavailable")
		}
		return nil, err
	}
	return b.resolver.ResolveOrCreate(ctx, domain.SSOCriteria{
		Provider:      provider,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Phone:         claims.Phone,
		PhoneVerified: claims.PhoneVerified,
	})
}

// classify maps anything a verifier returns onto the two provider error kinds.
func classify(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidProviderToken, apperr.KindProviderUnavailable:
		return err
	}
	if isTransient(err) {
		return apperr.ErrProviderUnavailable
	}
	return apperr.ErrInvalidProviderToken
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
