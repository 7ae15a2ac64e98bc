package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"

	authv1 "ridehail-identity/api/auth/v1"
	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/audit"
	auditrepo "ridehail-identity/internal/audit/repository"
	"ridehail-identity/internal/config"
	"ridehail-identity/internal/db"
	"ridehail-identity/internal/devotp"
	devotphandler "ridehail-identity/internal/devotp/handler"
	healthhandler "ridehail-identity/internal/health/handler"
	"ridehail-identity/internal/identity/domain"
	identityrepo "ridehail-identity/internal/identity/repository"
	"ridehail-identity/internal/identity/service"
	"ridehail-identity/internal/otp"
	"ridehail-identity/internal/otp/delivery"
	otpdomain "ridehail-identity/internal/otp/domain"
	otprepo "ridehail-identity/internal/otp/repository"
	policyengine "ridehail-identity/internal/policy/engine"
	"ridehail-identity/internal/security"
	"ridehail-identity/internal/server/interceptors"
	"ridehail-identity/internal/sso"
	"ridehail-identity/internal/sweeper"
	otelsetup "ridehail-identity/internal/telemetry/otel"
	"ridehail-identity/internal/telemetry/producer"
	"ridehail-identity/internal/token"
	tokenrepo "ridehail-identity/internal/token/repository"
)

const (
	serviceName    = "ridehail-auth"
	healthInterval = 15 * time.Second
)

// App is the assembled auth server: the gRPC server, its background jobs and what must be
// closed on shutdown.
type App struct {
	GRPC    *grpc.Server
	Health  *healthhandler.Server
	Sweeper *sweeper.Sweeper
	Audit   *audit.Logger
	// DevOTP is set only in dev OTP mode.
	DevOTP devotp.Store

	closers []func(context.Context) error
}

// Build wires every component from cfg. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config) (app *App, err error) {
	app = &App{}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	app.closers = append(app.closers, providers.Shutdown)

	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		sqlDB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return sqlDB.Close() })
	}

	var rdb *redis.Client
	if cfg.StoreBackend == config.StoreRedis {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		if err = rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	var (
		accounts identityrepo.Repository = identityrepo.NewMemoryRepository()
		auditLog auditrepo.Repository    = auditrepo.NewMemoryRepository()
	)
	if sqlDB != nil {
		accounts = identityrepo.NewPostgresRepository(sqlDB)
		auditLog = auditrepo.NewPostgresRepository(sqlDB)
	}

	var (
		challenges otprepo.Repository
		revoked    tokenrepo.Store
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		challenges = otprepo.NewPostgresRepository(sqlDB)
		revoked = tokenrepo.NewPostgresStore(sqlDB)
	case config.StoreRedis:
		challenges = otprepo.NewRedisRepository(rdb)
		revoked = tokenrepo.NewRedisStore(rdb)
	default:
		challenges = otprepo.NewMemoryRepository()
		revoked = tokenrepo.NewMemoryStore()
	}

	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey, !cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	tokens := token.NewService(
		security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL()),
		revoked,
	)

	policySrc := policyengine.DefaultRegoPolicy
	if cfg.LoginPolicyFile != "" {
		if policySrc, err = policyengine.LoadPolicy(cfg.LoginPolicyFile); err != nil {
			return nil, err
		}
	}
	policy, err := policyengine.NewOPAEvaluator(ctx, policySrc)
	if err != nil {
		return nil, fmt.Errorf("login policy: %w", err)
	}

	engine := otp.NewEngine(challenges, app.deliverers(cfg), otp.Config{
		TTL:             cfg.CodeTTL(),
		Cooldown:        cfg.Cooldown(),
		DeliveryTimeout: cfg.DeliveryTimeout(),
		MaxAttempts:     cfg.OTPMaxAttempts,
		Length:          cfg.OTPLength,
	})

	resolver := service.NewResolver(accounts, policy, apperr.StoreLinks{
		AppStore:  cfg.PassengerAppStoreURL,
		PlayStore: cfg.PassengerPlayStoreURL,
	})
	bridge := sso.NewBridge(ssoVerifiers(cfg), resolver, cfg.ProviderTimeout())

	proxies, err := interceptors.ParseTrustedProxies(cfg.TrustedProxiesList())
	if err != nil {
		return nil, fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}

	kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic)
	if kafka != nil {
		app.closers = append(app.closers, func(context.Context) error { return kafka.Close() })
	}
	app.Audit = audit.NewLogger(audit.Fanout{
		audit.NewRepositorySink(auditLog),
		otelsetup.NewAuditSink(providers.LoggerProvider),
		kafka,
	}, proxies.ClientIP)

	auth := service.NewAuthService(resolver, engine, bridge, tokens, policy, app.Audit)

	var pingers healthhandler.Pingers
	if sqlDB != nil {
		pingers = append(pingers, sqlDB)
	}
	if rdb != nil {
		pingers = append(pingers, healthhandler.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}
	app.Health = healthhandler.NewServer(pingers, policy, authv1.AuthService_ServiceName)

	var limiter *interceptors.IPRateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = interceptors.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithTrustedProxies(proxies)
	}
	app.GRPC = NewGRPCServer(Options{
		Verifier: tokens,
		Limiter:  limiter,
		Logger:   log.Logger,
		Meter:    otel.Meter("ridehail-identity/grpc"),
	})
	deps := Deps{Auth: auth, Health: app.Health}
	if app.DevOTP != nil {
		deps.DevOTPHandler = devotphandler.NewServer(app.DevOTP)
	}
	RegisterServices(app.GRPC, deps)

	app.Sweeper = sweeper.New(engine, tokens, cfg.SweepEvery())
	return app, nil
}

// deliverers returns the real gateways, or in dev OTP mode a registry that only records codes.
func (a *App) deliverers(cfg *config.Config) delivery.Registry {
	if cfg.OTPReturnToClient {
		store := devotp.NewMemoryStore()
		a.DevOTP = store
		log.Warn().Msg("dev OTP mode: codes are not delivered and can be read through DevService")
		return delivery.DevRegistry(delivery.NewDevDeliverer(store, cfg.CodeTTL()))
	}
	return delivery.Registry{
		otpdomain.ChannelSMS:  delivery.NewSMSClient(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender),
		otpdomain.ChannelCall: delivery.NewVoiceClient(cfg.VoiceAPIKey, cfg.VoiceBaseURL),
		otpdomain.ChannelPush: delivery.NewPushClient(cfg.PushAPIKey, cfg.PushBaseURL, cfg.PushIncludeCode),
	}
}

// ssoVerifiers registers a verifier for each provider that has credentials configured.
func ssoVerifiers(cfg *config.Config) sso.Registry {
	reg := sso.Registry{}
	if aud := cfg.GoogleAudiences(); len(aud) > 0 {
		reg[domain.ProviderGoogle] = sso.NewGoogleVerifier(aud, nil)
	}
	if aud := cfg.AppleAudiences(); len(aud) > 0 {
		reg[domain.ProviderApple] = sso.NewAppleVerifier(aud, nil)
	}
	if cfg.FacebookAppID != "" {
		reg[domain.ProviderFacebook] = sso.NewFacebookVerifier(cfg.FacebookAppID, cfg.FacebookAppSecret, "")
	}
	return reg
}

// Serve runs the gRPC server, the health prober and the sweeper until ctx is done, then stops
// gracefully. It does not close dependencies; call Close afterwards.
func (a *App) Serve(ctx context.Context, lis net.Listener) error {
	bg, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.Health.Run(bg, healthInterval)
	go a.Sweeper.Run(bg)

	errCh := make(chan error, 1)
	go func() { errCh <- a.GRPC.Serve(lis) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.Health.Shutdown()
	a.GRPC.GracefulStop()
	if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Close drains pending audit records, then closes dependencies in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	if a.Audit != nil {
		drained := make(chan struct{})
		go func() {
			a.Audit.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(audit.ShutdownDrainDuration):
			log.Warn().Msg("audit: shutdown drain timed out")
		case <-ctx.Done():
		}
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
