// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// StoreBackend selects where OTP challenges and revoked tokens live: memory, postgres or redis.
	// Identities and audit logs use Postgres whenever DATABASE_URL is set.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is host:port of the Redis server used when StoreBackend is redis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// OTPTTL is how long a sent code stays valid (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPCooldown is the minimum gap between two sends to the same target (e.g. "60s").
	OTPCooldown string `mapstructure:"OTP_COOLDOWN"`
	// OTPMaxAttempts is the number of wrong guesses allowed before a challenge locks.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPLength is the number of digits in a code.
	OTPLength int `mapstructure:"OTP_LENGTH"`
	// OTPDeliveryTimeout bounds a single delivery-channel call (e.g. "10s").
	OTPDeliveryTimeout string `mapstructure:"OTP_DELIVERY_TIMEOUT"`
	// OTPReturnToClient enables dev OTP mode: no gateway calls, codes readable via DevService/GetDevOtp.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	SMSAPIKey  string `mapstructure:"SMS_API_KEY"`
	SMSBaseURL string `mapstructure:"SMS_BASE_URL"`
	SMSSender  string `mapstructure:"SMS_SENDER"`

	VoiceAPIKey  string `mapstructure:"VOICE_API_KEY"`
	VoiceBaseURL string `mapstructure:"VOICE_BASE_URL"`

	PushAPIKey  string `mapstructure:"PUSH_API_KEY"`
	PushBaseURL string `mapstructure:"PUSH_BASE_URL"`
	// PushIncludeCode puts the code in the push data payload so the app can autofill it.
	// When false the push only signals that a code was issued.
	PushIncludeCode bool `mapstructure:"PUSH_INCLUDE_CODE"`

	// GoogleClientIDs is a comma-separated list of accepted Google OAuth client IDs (aud).
	GoogleClientIDs string `mapstructure:"GOOGLE_CLIENT_IDS"`
	// AppleClientIDs is a comma-separated list of accepted Apple service/bundle IDs (aud).
	AppleClientIDs    string `mapstructure:"APPLE_CLIENT_IDS"`
	FacebookAppID     string `mapstructure:"FACEBOOK_APP_ID"`
	FacebookAppSecret string `mapstructure:"FACEBOOK_APP_SECRET"`
	// SSOTimeout bounds a single provider verification call (e.g. "5s").
	SSOTimeout string `mapstructure:"SSO_TIMEOUT"`

	// PassengerAppStoreURL and PassengerPlayStoreURL are returned to drivers who have no passenger account yet.
	PassengerAppStoreURL  string `mapstructure:"PASSENGER_APP_STORE_URL"`
	PassengerPlayStoreURL string `mapstructure:"PASSENGER_PLAY_STORE_URL"`

	// LoginPolicyFile is an optional path to a Rego file replacing the built-in login policy.
	LoginPolicyFile string `mapstructure:"LOGIN_POLICY_FILE"`

	// RateLimitRPS and RateLimitBurst configure the per-client-IP limiter. RPS <= 0 disables it.
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose x-forwarded-for is believed.
	// Empty means the limiter and audit log use the transport peer address.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// SweepInterval is the housekeeping cadence (e.g. "10m"); "0" disables the sweeper.
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; when set, audit events are streamed.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the audit worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "ridehail-auth")
	v.SetDefault("JWT_AUDIENCE", "ridehail-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_COOLDOWN", "60s")
	v.SetDefault("OTP_MAX_ATTEMPTS", 3)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_DELIVERY_TIMEOUT", "10s")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_BASE_URL", "https://notify.eskiz.uz/api/message/sms/send")
	v.SetDefault("SMS_SENDER", "")
	v.SetDefault("VOICE_API_KEY", "")
	v.SetDefault("VOICE_BASE_URL", "")
	v.SetDefault("PUSH_API_KEY", "")
	v.SetDefault("PUSH_BASE_URL", "")
	v.SetDefault("PUSH_INCLUDE_CODE", true)
	v.SetDefault("GOOGLE_CLIENT_IDS", "")
	v.SetDefault("APPLE_CLIENT_IDS", "")
	v.SetDefault("FACEBOOK_APP_ID", "")
	v.SetDefault("FACEBOOK_APP_SECRET", "")
	v.SetDefault("SSO_TIMEOUT", "5s")
	v.SetDefault("PASSENGER_APP_STORE_URL", "")
	v.SetDefault("PASSENGER_PLAY_STORE_URL", "")
	v.SetDefault("LOGIN_POLICY_FILE", "")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "ridehail-auth-audit")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "ridehail-audit-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	switch cfg.StoreBackend {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return nil, errors.New("config: STORE_BACKEND must be one of memory, postgres, redis")
	}
	if cfg.StoreBackend == StorePostgres && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set when STORE_BACKEND=postgres")
	}
	if cfg.StoreBackend == StoreMemory && cfg.Env == "production" {
		return nil, errors.New("config: STORE_BACKEND=memory is not allowed when APP_ENV=production")
	}

	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = 3
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, errors.New("config: OTP_LENGTH must be between 4 and 10")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 720*time.Hour)
}

// CodeTTL parses OTPTTL. Returns 5m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	return parseDuration(c.OTPTTL, 5*time.Minute)
}

// Cooldown parses OTPCooldown. Returns 60s if unset or invalid.
func (c *Config) Cooldown() time.Duration {
	return parseDuration(c.OTPCooldown, 60*time.Second)
}

// DeliveryTimeout parses OTPDeliveryTimeout. Returns 10s if unset or invalid.
func (c *Config) DeliveryTimeout() time.Duration {
	return parseDuration(c.OTPDeliveryTimeout, 10*time.Second)
}

// ProviderTimeout parses SSOTimeout. Returns 5s if unset or invalid.
func (c *Config) ProviderTimeout() time.Duration {
	return parseDuration(c.SSOTimeout, 5*time.Second)
}

// SweepEvery parses SweepInterval. Returns 0 (disabled) when set to "0" and 10m when invalid.
func (c *Config) SweepEvery() time.Duration {
	if strings.TrimSpace(c.SweepInterval) == "0" {
		return 0
	}
	return parseDuration(c.SweepInterval, 10*time.Minute)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if audit streaming is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// TrustedProxiesList returns the configured proxy addresses and ranges.
func (c *Config) TrustedProxiesList() []string {
	return splitList(c.TrustedProxies)
}

// GoogleAudiences returns the accepted Google client IDs.
func (c *Config) GoogleAudiences() []string {
	return splitList(c.GoogleClientIDs)
}

// AppleAudiences returns the accepted Apple client IDs.
func (c *Config) AppleAudiences() []string {
	return splitList(c.AppleClientIDs)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
