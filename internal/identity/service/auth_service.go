package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ridehail-identity/internal/apperr"
	auditdomain "ridehail-identity/internal/audit/domain"
	"ridehail-identity/internal/identity/domain"
	"ridehail-identity/internal/logging"
	"ridehail-identity/internal/otp"
	otpdomain "ridehail-identity/internal/otp/domain"
	"ridehail-identity/internal/security"
	"ridehail-identity/internal/token"
)

// OTPEngine is the part of the OTP engine the auth service needs.
type OTPEngine interface {
	Send(ctx context.Context, target string, channel otpdomain.Channel) (*otp.SendResult, error)
	Verify(ctx context.Context, target, code string) error
}

// SSOBridge authenticates a provider token and resolves its account.
type SSOBridge interface {
	Authenticate(ctx context.Context, provider domain.Provider, token string) (*domain.Identity, error)
}

// TokenService is the part of the token service the auth service needs.
type TokenService interface {
	Issue(identityID, role string) (*token.Pair, error)
	Rotate(ctx context.Context, refreshToken string) (*token.Pair, error)
	Revoke(ctx context.Context, token string) error
	VerifyAccessNotRevoked(ctx context.Context, token string) (*security.Claims, error)
}

// ChannelPolicy decides which delivery channels an app may request.
type ChannelPolicy interface {
	AllowChannel(ctx context.Context, app domain.App, channel otpdomain.Channel) (bool, error)
}

// AuditLogger records audit events without blocking or failing the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, e auditdomain.Event)
}

// SendResult is the outcome of SendOtp.
type SendResult struct {
	Sent      bool
	Channel   otpdomain.Channel
	ExpiresIn time.Duration
}

// LoginResult is the outcome of a successful OTP or SSO login.
type LoginResult struct {
	Identity *domain.Identity
	Tokens   *token.Pair
}

// Introspection describes a live access token.
type Introspection struct {
	IdentityID string
	Role       string
	ExpiresAt  time.Time
}

// AuthService implements phone OTP login, SSO login, refresh, logout and introspection.
type AuthService struct {
	resolver *Resolver
	otp      OTPEngine
	sso      SSOBridge
	tokens   TokenService
	channels ChannelPolicy
	audit    AuditLogger
}

// NewAuthService returns an AuthService. sso, channels and audit may be nil: SSO is then disabled,
// every channel the OTP engine knows is allowed, and nothing is audited.
func NewAuthService(resolver *Resolver, engine OTPEngine, sso SSOBridge, tokens TokenService, channels ChannelPolicy, audit AuditLogger) *AuthService {
	return &AuthService{
		resolver: resolver,
		otp:      engine,
		sso:      sso,
		tokens:   tokens,
		channels: channels,
		audit:    audit,
	}
}

// SendOtp sends a login code to target. Driver-app requests for a phone with no account fail with
// a CrossAppError before any code is generated.
func (s *AuthService) SendOtp(ctx context.Context, target string, channel otpdomain.Channel, app domain.App) (*SendResult, error) {
	phone, err := s.checkRequest(target, app)
	if err != nil {
		return nil, err
	}
	if err := s.checkChannel(ctx, app, channel); err != nil {
		return nil, err
	}
	if err := s.driverGate(ctx, phone, app); err != nil {
		return nil, err
	}
	res, err := s.otp.Send(ctx, phone, channel)
	ev := auditdomain.Event{Type: auditdomain.EventOtpSent, Target: logging.MaskTarget(phone), Channel: string(channel), App: string(app)}
	if err != nil {
		s.record(ctx, ev, err)
		return nil, err
	}
	s.record(ctx, ev, nil)
	return &SendResult{Sent: true, Channel: res.Channel, ExpiresIn: res.ExpiresIn}, nil
}

// VerifyOtp checks code for target and, on success, resolves the account and issues tokens whose
// role claim is the app the user signed into.
func (s *AuthService) VerifyOtp(ctx context.Context, target, code string, app domain.App) (*LoginResult, error) {
	phone, err := s.checkRequest(target, app)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Invalid("code is required")
	}
	if err := s.driverGate(ctx, phone, app); err != nil {
		return nil, err
	}
	ev := auditdomain.Event{Type: auditdomain.EventOtpVerified, Target: logging.MaskTarget(phone), App: string(app)}
	if err := s.otp.Verify(ctx, phone, code); err != nil {
		ev.Type = auditdomain.EventOtpFailed
		s.record(ctx, ev, err)
		return nil, err
	}
	acct, err := s.resolver.ResolveOrCreate(ctx, domain.PhoneCriteria{Phone: phone, App: app})
	if err != nil {
		ev.Type = auditdomain.EventOtpFailed
		s.record(ctx, ev, err)
		return nil, err
	}
	pair, err := s.tokens.Issue(acct.ID, string(app))
	if err != nil {
		return nil, err
	}
	ev.IdentityID = acct.ID
	s.record(ctx, ev, nil)
	return &LoginResult{Identity: acct, Tokens: pair}, nil
}

// SsoLogin verifies a provider token and issues passenger-app tokens for the linked account.
func (s *AuthService) SsoLogin(ctx context.Context, provider domain.Provider, providerToken string) (*LoginResult, error) {
	if s.sso == nil {
		return nil, apperr.Invalid("sso login is not enabled")
	}
	ev := auditdomain.Event{Type: auditdomain.EventSSOLogin, Provider: string(provider), App: string(domain.AppPassenger)}
	acct, err := s.sso.Authenticate(ctx, provider, providerToken)
	if err != nil {
		ev.Type = auditdomain.EventSSOFailed
		s.record(ctx, ev, err)
		return nil, err
	}
	pair, err := s.tokens.Issue(acct.ID, string(domain.AppPassenger))
	if err != nil {
		return nil, err
	}
	ev.IdentityID = acct.ID
	s.record(ctx, ev, nil)
	return &LoginResult{Identity: acct, Tokens: pair}, nil
}

// RefreshTokens rotates refreshToken. The presented token is spent even when the account is no
// longer allowed to sign in; the replacement is then revoked and ErrUnauthorized returned.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*token.Pair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.Invalid("refresh token is required")
	}
	pair, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperr.ErrRevoked) {
			s.record(ctx, auditdomain.Event{Type: auditdomain.EventRefreshReplay}, err)
		}
		return nil, err
	}
	app, ok := domain.ParseApp(pair.Role)
	if !ok {
		app = domain.AppPassenger
	}
	if _, err := s.resolver.Authorize(ctx, pair.IdentityID, app); err != nil {
		if rerr := s.tokens.Revoke(context.WithoutCancel(ctx), pair.RefreshToken); rerr != nil {
			log.Error().Err(rerr).Str("identity_id", pair.IdentityID).Msg("auth: revoke refresh after denied rotation")
		}
		s.record(ctx, auditdomain.Event{Type: auditdomain.EventTokenRefreshed, IdentityID: pair.IdentityID, App: string(app)}, err)
		return nil, err
	}
	s.record(ctx, auditdomain.Event{Type: auditdomain.EventTokenRefreshed, IdentityID: pair.IdentityID, App: string(app)}, nil)
	return pair, nil
}

// Logout revokes whichever tokens are given. It always succeeds; revocation failures are logged.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	ev := auditdomain.Event{Type: auditdomain.EventLogout}
	if accessToken != "" {
		if claims, err := s.tokens.VerifyAccessNotRevoked(ctx, accessToken); err == nil {
			ev.IdentityID = claims.Subject
			ev.App = claims.Role
		}
	}
	for _, t := range []string{accessToken, refreshToken} {
		if t == "" {
			continue
		}
		if err := s.tokens.Revoke(ctx, t); err != nil {
			log.Warn().Err(err).Msg("auth: logout revoke failed")
		}
	}
	s.record(ctx, ev, nil)
}

// Introspect validates an access token, including the revocation set, and returns its subject.
func (s *AuthService) Introspect(ctx context.Context, accessToken string) (*Introspection, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperr.ErrInvalidToken
	}
	claims, err := s.tokens.VerifyAccessNotRevoked(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &Introspection{IdentityID: claims.Subject, Role: claims.Role, ExpiresAt: claims.ExpiresAtTime()}, nil
}

func (s *AuthService) checkRequest(target string, app domain.App) (string, error) {
	if _, ok := domain.ParseApp(string(app)); !ok {
		return "", apperr.Invalid("app must be passenger or driver")
	}
	phone, err := domain.NormalizePhone(target)
	if err != nil {
		return "", apperr.Invalid(err.Error())
	}
	return phone, nil
}

func (s *AuthService) checkChannel(ctx context.Context, app domain.App, channel otpdomain.Channel) error {
	if _, ok := otpdomain.ParseChannel(string(channel)); !ok {
		return apperr.Invalid("channel must be sms, call or push")
	}
	if s.channels == nil {
		return nil
	}
	ok, err := s.channels.AllowChannel(ctx, app, channel)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("channel " + string(channel) + " is not available in the " + string(app) + " app")
	}
	return nil
}

func (s *AuthService) driverGate(ctx context.Context, phone string, app domain.App) error {
	if app != domain.AppDriver {
		return nil
	}
	if err := s.resolver.CheckDriverGate(ctx, phone); err != nil {
		if errors.Is(err, apperr.ErrCrossAppNotRegistered) {
			s.record(ctx, auditdomain.Event{Type: auditdomain.EventCrossAppDenied, Target: logging.MaskTarget(phone), App: string(app)}, err)
		}
		return err
	}
	return nil
}

// record stamps the outcome from err and hands e to the audit logger.
func (s *AuthService) record(ctx context.Context, e auditdomain.Event, err error) {
	if s.audit == nil {
		return
	}
	e.Outcome = auditdomain.OutcomeSuccess
	if err != nil {
		e.Outcome = auditdomain.OutcomeFailure
		e.Reason = string(apperr.KindOf(err))
		if e.Reason == "" {
			e.Reason = "internal"
		}
	}
	s.audit.LogEvent(ctx, e)
}
