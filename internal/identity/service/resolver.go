package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/identity/domain"
	"ridehail-identity/internal/identity/repository"
)

// AccountRepo is the minimal account repository needed by the resolver.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByLink(ctx context.Context, provider domain.Provider, subject string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	Update(ctx context.Context, i *domain.Identity) error
	AddLink(ctx context.Context, identityID string, link domain.LinkedIdentity) error
}

// LoginPolicy decides whether an account may sign into an app.
type LoginPolicy interface {
	AllowLogin(ctx context.Context, acct *domain.Identity, app domain.App) (bool, error)
}

// activeOnly is the fallback policy when none is configured.
type activeOnly struct{}

func (activeOnly) AllowLogin(_ context.Context, acct *domain.Identity, _ domain.App) (bool, error) {
	return acct.Status == domain.StatusActive, nil
}

// Resolver finds or creates the local account for a verified login.
type Resolver struct {
	repo           AccountRepo
	policy         LoginPolicy
	passengerLinks apperr.StoreLinks
	now            func() time.Time
}

// NewResolver returns a Resolver. passengerLinks are returned to driver-app users who have no passenger account.
// A nil policy allows active accounts only.
func NewResolver(repo AccountRepo, policy LoginPolicy, passengerLinks apperr.StoreLinks) *Resolver {
	if policy == nil {
		policy = activeOnly{}
	}
	return &Resolver{
		repo:           repo,
		policy:         policy,
		passengerLinks: passengerLinks,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CheckDriverGate fails with a CrossAppError unless an account already exists for phone.
// It runs before any code is sent to a driver-app user.
func (r *Resolver) CheckDriverGate(ctx context.Context, phone string) error {
	acct, err := r.repo.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if acct == nil {
		return &apperr.CrossAppError{Links: r.passengerLinks}
	}
	return nil
}

// ResolveOrCreate returns the account matching criteria, creating a passenger account for a new
// phone or SSO subject. Driver-app phone logins upgrade the account role to driver.
func (r *Resolver) ResolveOrCreate(ctx context.Context, criteria domain.Criteria) (*domain.Identity, error) {
	switch c := criteria.(type) {
	case domain.PhoneCriteria:
		return r.resolvePhone(ctx, c)
	case domain.SSOCriteria:
		return r.resolveSSO(ctx, c)
	}
	return nil, apperr.Invalid("unsupported login criteria")
}

func (r *Resolver) resolvePhone(ctx context.Context, c domain.PhoneCriteria) (*domain.Identity, error) {
	acct, err := r.repo.GetByPhone(ctx, c.Phone)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		if c.App == domain.AppDriver {
			return nil, &apperr.CrossAppError{Links: r.passengerLinks}
		}
		acct, err = r.create(ctx, &domain.Identity{Phone: c.Phone, PhoneVerified: true}, func(ctx context.Context) (*domain.Identity, error) {
			return r.repo.GetByPhone(ctx, c.Phone)
		})
		if err != nil {
			return nil, err
		}
	}
	if err := r.allow(ctx, acct, c.App); err != nil {
		return nil, err
	}

	changed := false
	if !acct.PhoneVerified {
		acct.PhoneVerified = true
		changed = true
	}
	if c.App == domain.AppDriver && acct.Role != domain.RoleDriver {
		acct.Role = domain.RoleDriver
		changed = true
	}
	if changed {
		acct.UpdatedAt = r.now()
		if err := r.repo.Update(ctx, acct); err != nil {
			return nil, err
		}
	}
	return acct, nil
}

func (r *Resolver) resolveSSO(ctx context.Context, c domain.SSOCriteria) (*domain.Identity, error) {
	if c.Subject == "" {
		return nil, apperr.ErrInvalidProviderToken
	}
	c.Email = domain.NormalizeEmail(c.Email)

	acct, err := r.repo.GetByLink(ctx, c.Provider, c.Subject)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		if err := r.allow(ctx, acct, domain.AppPassenger); err != nil {
			return nil, err
		}
		return acct, nil
	}

	acct, err = r.matchExisting(ctx, c)
	if err != nil {
		return nil, err
	}
	link := domain.LinkedIdentity{Provider: c.Provider, Subject: c.Subject, Email: c.Email, LinkedAt: r.now()}
	if acct != nil {
		if _, has := acct.LinkFor(c.Provider); has {
			return nil, apperr.ErrConflictingIdentity
		}
		if err := r.allow(ctx, acct, domain.AppPassenger); err != nil {
			return nil, err
		}
		if err := r.repo.AddLink(ctx, acct.ID, link); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return r.relinked(ctx, c, acct.ID)
			}
			return nil, err
		}
		acct.Links = append(acct.Links, link)
		if c.EmailVerified && acct.Email == c.Email && !acct.EmailVerified {
			acct.EmailVerified = true
			acct.UpdatedAt = r.now()
			if err := r.repo.Update(ctx, acct); err != nil {
				return nil, err
			}
		}
		return acct, nil
	}

	acct, err = r.create(ctx, &domain.Identity{
		Email:         c.Email,
		EmailVerified: c.EmailVerified && c.Email != "",
		Name:          c.Name,
		Links:         []domain.LinkedIdentity{link},
	}, func(ctx context.Context) (*domain.Identity, error) {
		return r.repo.GetByLink(ctx, c.Provider, c.Subject)
	})
	if err != nil {
		return nil, err
	}
	if err := r.allow(ctx, acct, domain.AppPassenger); err != nil {
		return nil, err
	}
	return acct, nil
}

// matchExisting looks for an account the SSO subject may be linked to. Only a verified email or a
// verified phone may match; an unverified one that collides with an account is a conflict, never a merge.
// A phone that does not normalize to E.164 is ignored.
func (r *Resolver) matchExisting(ctx context.Context, c domain.SSOCriteria) (*domain.Identity, error) {
	var byEmail, byPhone *domain.Identity
	var err error
	if c.Email != "" {
		byEmail, err = r.repo.GetByEmail(ctx, c.Email)
		if err != nil {
			return nil, err
		}
		if byEmail != nil && !c.EmailVerified {
			return nil, apperr.ErrConflictingIdentity
		}
	}
	if phone, perr := domain.NormalizePhone(c.Phone); c.Phone != "" && perr == nil {
		byPhone, err = r.repo.GetByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		if byPhone != nil && !c.PhoneVerified {
			return nil, apperr.ErrConflictingIdentity
		}
	}
	switch {
	case byEmail != nil && byPhone != nil && byEmail.ID != byPhone.ID:
		return nil, apperr.ErrConflictingIdentity
	case byEmail != nil:
		return byEmail, nil
	}
	return byPhone, nil
}

// relinked handles losing an AddLink race: the subject is fine only if it landed on the same account.
func (r *Resolver) relinked(ctx context.Context, c domain.SSOCriteria, accountID string) (*domain.Identity, error) {
	acct, err := r.repo.GetByLink(ctx, c.Provider, c.Subject)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.ID != accountID {
		return nil, apperr.ErrConflictingIdentity
	}
	return acct, nil
}

// create persists a new passenger account. If a concurrent login created it first, reload reads the winner.
func (r *Resolver) create(ctx context.Context, acct *domain.Identity, reload func(context.Context) (*domain.Identity, error)) (*domain.Identity, error) {
	now := r.now()
	acct.ID = uuid.New().String()
	acct.Role = domain.RolePassenger
	acct.Status = domain.StatusActive
	acct.CreatedAt = now
	acct.UpdatedAt = now
	if err := acct.Validate(); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	if err := r.repo.Create(ctx, acct); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		existing, rerr := reload(ctx)
		if rerr != nil {
			return nil, rerr
		}
		if existing == nil {
			return nil, apperr.ErrConflictingIdentity
		}
		return existing, nil
	}
	return acct, nil
}

// Authorize re-checks the login policy for an existing account, e.g. on token refresh.
// A missing account is unauthorized.
func (r *Resolver) Authorize(ctx context.Context, identityID string, app domain.App) (*domain.Identity, error) {
	acct, err := r.repo.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, apperr.ErrUnauthorized
	}
	if err := r.allow(ctx, acct, app); err != nil {
		return nil, err
	}
	return acct, nil
}

func (r *Resolver) allow(ctx context.Context, acct *domain.Identity, app domain.App) error {
	ok, err := r.policy.AllowLogin(ctx, acct, app)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrUnauthorized
	}
	return nil
}
