// Package handler exposes the authentication core over gRPC (ridehail.auth.v1.AuthService).
package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "ridehail-identity/api/auth/v1"
	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/identity/domain"
	"ridehail-identity/internal/identity/service"
	otpdomain "ridehail-identity/internal/otp/domain"
	"ridehail-identity/internal/server/interceptors"
	"ridehail-identity/internal/token"
)

// ErrorDomain is the ErrorInfo domain attached to every business failure.
const ErrorDomain = "auth.ridehail"

// AuthService is the authentication core the gRPC server delegates to.
type AuthService interface {
	SendOtp(ctx context.Context, target string, channel otpdomain.Channel, app domain.App) (*service.SendResult, error)
	VerifyOtp(ctx context.Context, target, code string, app domain.App) (*service.LoginResult, error)
	SsoLogin(ctx context.Context, provider domain.Provider, providerToken string) (*service.LoginResult, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*token.Pair, error)
	Logout(ctx context.Context, accessToken, refreshToken string)
	Introspect(ctx context.Context, accessToken string) (*service.Introspection, error)
}

// AuthServer implements AuthService over gRPC.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	auth AuthService
}

// NewAuthServer returns a new Auth gRPC server. A nil auth makes every method Unimplemented.
func NewAuthServer(auth AuthService) *AuthServer {
	return &AuthServer{auth: auth}
}

// SendOtp issues a login code over the requested channel.
func (s *AuthServer) SendOtp(ctx context.Context, req *authv1.SendOtpRequest) (*authv1.SendOtpResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method SendOtp not implemented")
	}
	res, err := s.auth.SendOtp(ctx, req.GetTarget(), parseChannel(req.GetChannel()), parseApp(req.GetApp()))
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.SendOtpResponse{
		Sent:             res.Sent,
		Channel:          string(res.Channel),
		ExpiresInSeconds: int64(res.ExpiresIn.Seconds()),
	}, nil
}

// VerifyOtp checks a code and returns the account with a fresh token pair.
func (s *AuthServer) VerifyOtp(ctx context.Context, req *authv1.VerifyOtpRequest) (*authv1.LoginResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method VerifyOtp not implemented")
	}
	res, err := s.auth.VerifyOtp(ctx, req.GetTarget(), req.GetCode(), parseApp(req.GetApp()))
	if err != nil {
		return nil, authErr(err)
	}
	return loginResponse(res), nil
}

// SsoLogin signs in with a Google, Apple or Facebook token.
func (s *AuthServer) SsoLogin(ctx context.Context, req *authv1.SsoLoginRequest) (*authv1.LoginResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method SsoLogin not implemented")
	}
	provider, ok := domain.ParseProvider(req.GetProvider())
	if !ok {
		return nil, authErr(apperr.Invalid("provider must be google, apple or facebook"))
	}
	res, err := s.auth.SsoLogin(ctx, provider, req.GetProviderToken())
	if err != nil {
		return nil, authErr(err)
	}
	return loginResponse(res), nil
}

// RefreshTokens exchanges a refresh token for a new pair. Each refresh token works once.
func (s *AuthServer) RefreshTokens(ctx context.Context, req *authv1.RefreshTokensRequest) (*authv1.RefreshTokensResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method RefreshTokens not implemented")
	}
	if strings.TrimSpace(req.GetRefreshToken()) == "" {
		return nil, authErr(apperr.Invalid("refresh_token is required"))
	}
	pair, err := s.auth.RefreshTokens(ctx, req.GetRefreshToken())
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.RefreshTokensResponse{Tokens: tokenPair(pair)}, nil
}

// Logout revokes the given tokens. The access token defaults to the request's Bearer header.
// Logout never fails.
func (s *AuthServer) Logout(ctx context.Context, req *authv1.LogoutRequest) (*authv1.LogoutResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	access := req.GetAccessToken()
	if access == "" {
		access = interceptors.BearerToken(ctx)
	}
	s.auth.Logout(ctx, access, req.GetRefreshToken())
	return &authv1.LogoutResponse{Ok: true}, nil
}

// Introspect reports who a live, unrevoked access token belongs to.
func (s *AuthServer) Introspect(ctx context.Context, req *authv1.IntrospectRequest) (*authv1.IntrospectResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Introspect not implemented")
	}
	access := req.GetAccessToken()
	if access == "" {
		access = interceptors.BearerToken(ctx)
	}
	if access == "" {
		return nil, authErr(apperr.Invalid("access_token is required"))
	}
	in, err := s.auth.Introspect(ctx, access)
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.IntrospectResponse{IdentityId: in.IdentityID, Role: in.Role, ExpiresAt: in.ExpiresAt.Unix()}, nil
}

// parseApp normalizes known apps and passes anything else through for the service to reject.
func parseApp(s string) domain.App {
	if app, ok := domain.ParseApp(s); ok {
		return app
	}
	return domain.App(s)
}

func parseChannel(s string) otpdomain.Channel {
	if ch, ok := otpdomain.ParseChannel(s); ok {
		return ch
	}
	return otpdomain.Channel(s)
}

func loginResponse(res *service.LoginResult) *authv1.LoginResponse {
	return &authv1.LoginResponse{Identity: identityToProto(res.Identity), Tokens: tokenPair(res.Tokens)}
}

func identityToProto(id *domain.Identity) *authv1.Identity {
	if id == nil {
		return nil
	}
	out := &authv1.Identity{
		Id:            id.ID,
		Phone:         id.Phone,
		Email:         id.Email,
		Name:          id.Name,
		Role:          string(id.Role),
		PhoneVerified: id.PhoneVerified,
		EmailVerified: id.EmailVerified,
	}
	for _, l := range id.Links {
		out.Providers = append(out.Providers, string(l.Provider))
	}
	return out
}

func tokenPair(p *token.Pair) *authv1.TokenPair {
	if p == nil {
		return nil
	}
	return &authv1.TokenPair{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt.Unix(),
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt.Unix(),
		TokenType:        "Bearer",
	}
}

var kindCodes = map[apperr.Kind]codes.Code{
	apperr.KindRateLimited:           codes.ResourceExhausted,
	apperr.KindDeliveryFailed:        codes.Unavailable,
	apperr.KindNotFound:              codes.NotFound,
	apperr.KindExpired:               codes.FailedPrecondition,
	apperr.KindInvalidCode:           codes.Unauthenticated,
	apperr.KindLocked:                codes.FailedPrecondition,
	apperr.KindAlreadyConsumed:       codes.FailedPrecondition,
	apperr.KindInvalidProviderToken:  codes.Unauthenticated,
	apperr.KindProviderUnavailable:   codes.Unavailable,
	apperr.KindConflictingIdentity:   codes.AlreadyExists,
	apperr.KindCrossAppNotRegistered: codes.FailedPrecondition,
	apperr.KindInvalidToken:          codes.Unauthenticated,
	apperr.KindRevoked:               codes.Unauthenticated,
	apperr.KindUnauthorized:          codes.PermissionDenied,
	apperr.KindInvalidArgument:       codes.InvalidArgument,
}

// authErr maps a service error to a gRPC status carrying an ErrorInfo whose Reason is the error kind.
// Infrastructure failures become Internal without leaking their message.
func authErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	kind := apperr.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		log.Error().Err(err).Msg("auth: internal error")
		return status.Error(codes.Internal, "internal error")
	}
	meta := map[string]string{}
	if n, ok := apperr.Remaining(err); ok {
		meta["remaining_attempts"] = strconv.Itoa(n)
	}
	if links, ok := apperr.Links(err); ok {
		if links.AppStore != "" {
			meta["app_store_url"] = links.AppStore
		}
		if links.PlayStore != "" {
			meta["play_store_url"] = links.PlayStore
		}
	}
	if apperr.Retryable(err) {
		meta["retryable"] = "true"
	}
	msg := apperr.Message(err)
	if msg != err.Error() {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("auth: request failed")
	}
	st, detailErr := status.New(code, msg).WithDetails(&errdetails.ErrorInfo{
		Reason:   strings.ToUpper(string(kind)),
		Domain:   ErrorDomain,
		Metadata: meta,
	})
	if detailErr != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}
