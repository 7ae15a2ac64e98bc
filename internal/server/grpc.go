package server

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authv1 "ridehail-identity/api/auth/v1"
	devv1 "ridehail-identity/api/dev/v1"
	_ "ridehail-identity/api/jsoncodec"
	healthhandler "ridehail-identity/internal/health/handler"
	identityhandler "ridehail-identity/internal/identity/handler"
	"ridehail-identity/internal/server/interceptors"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// publicMethods need no Bearer token. Every AuthService RPC is part of the sign-in flow or
// carries its own token in the request.
var publicMethods = map[string]bool{
	authv1.AuthService_SendOtp_FullMethodName:       true,
	authv1.AuthService_VerifyOtp_FullMethodName:     true,
	authv1.AuthService_SsoLogin_FullMethodName:      true,
	authv1.AuthService_RefreshTokens_FullMethodName: true,
	authv1.AuthService_Logout_FullMethodName:        true,
	authv1.AuthService_Introspect_FullMethodName:    true,
	devv1.DevService_GetDevOtp_FullMethodName:       true,
	healthCheckMethod:                               true,
}

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Auth is the authentication core. If nil, AuthService RPCs return Unimplemented.
	Auth identityhandler.AuthService
	// Health answers grpc.health.v1. If nil, the health service is not registered.
	Health *healthhandler.Server
	// DevOTPHandler is the dev-only DevService (GetDevOtp). If nil, DevService is not registered.
	// Set only when OTP_RETURN_TO_CLIENT is true, which config rejects in production.
	DevOTPHandler devv1.DevServiceServer
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - ridehail.auth.v1.AuthService → internal/identity/handler
//   - ridehail.dev.v1.DevService   → internal/devotp/handler
//   - grpc.health.v1.Health        → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	authv1.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
	if deps.DevOTPHandler != nil {
		devv1.RegisterDevServiceServer(s, deps.DevOTPHandler)
	}
}

// Options configures the interceptor chain of NewGRPCServer.
type Options struct {
	// Verifier validates Bearer tokens for non-public methods and populates the request identity.
	Verifier interceptors.AccessVerifier
	// Limiter throttles requests per client IP. Nil disables limiting.
	Limiter *interceptors.IPRateLimiter
	Logger  zerolog.Logger
	Meter   metric.Meter
}

// NewGRPCServer returns a server with tracing, access logging, rate limiting and Bearer
// authentication, in that order.
func NewGRPCServer(opts Options, extra ...grpc.ServerOption) *grpc.Server {
	skip := map[string]bool{healthCheckMethod: true}
	chain := []grpc.UnaryServerInterceptor{
		interceptors.TelemetryUnary(opts.Logger, opts.Meter, skip),
		interceptors.RateLimitUnary(opts.Limiter, skip),
	}
	if opts.Verifier != nil {
		chain = append(chain, interceptors.AuthUnary(opts.Verifier, publicMethods))
	}
	serverOpts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, extra...)
	return grpc.NewServer(serverOpts...)
}
