package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreMemory)
	}
	if cfg.JWTIssuer != "ridehail-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "ridehail-auth")
	}
	if cfg.JWTAudience != "ridehail-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "ridehail-api")
	}
	if cfg.OTPMaxAttempts != 3 {
		t.Errorf("OTPMaxAttempts = %d, want 3", cfg.OTPMaxAttempts)
	}
	if cfg.OTPLength != 6 {
		t.Errorf("OTPLength = %d, want 6", cfg.OTPLength)
	}
	if cfg.CodeTTL() != 5*time.Minute {
		t.Errorf("CodeTTL = %v, want 5m", cfg.CodeTTL())
	}
	if cfg.Cooldown() != 60*time.Second {
		t.Errorf("Cooldown = %v, want 60s", cfg.Cooldown())
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 720*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", cfg.RefreshTTL())
	}
	if !cfg.PushIncludeCode {
		t.Error("PushIncludeCode should default to true")
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.SweepEvery() != 10*time.Minute {
		t.Errorf("SweepEvery = %v, want 10m", cfg.SweepEvery())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("OTP_COOLDOWN", "2m")
	os.Setenv("OTP_MAX_ATTEMPTS", "5")
	os.Setenv("STORE_BACKEND", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.Cooldown() != 2*time.Minute {
		t.Errorf("Cooldown = %v, want 2m", cfg.Cooldown())
	}
	if cfg.OTPMaxAttempts != 5 {
		t.Errorf("OTPMaxAttempts = %d, want 5", cfg.OTPMaxAttempts)
	}
	if cfg.StoreBackend != StoreRedis {
		t.Errorf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
}

func TestLoad_StoreBackendValidation(t *testing.T) {
	testCases := []struct {
		name    string
		backend string
		dsn     string
		env     string
		wantErr bool
	}{
		{"memory", "memory", "", "", false},
		{"redis", "redis", "", "", false},
		{"postgres with dsn", "postgres", "postgres://localhost/db", "", false},
		{"postgres without dsn", "postgres", "", "", true},
		{"unknown backend", "etcd", "", "", true},
		{"memory in production", "memory", "", "production", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("STORE_BACKEND", tc.backend)
			if tc.dsn != "" {
				os.Setenv("DATABASE_URL", tc.dsn)
			}
			if tc.env != "" {
				os.Setenv("APP_ENV", tc.env)
			}
			_, err := Load()
			if tc.wantErr && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_OTPLengthRange(t *testing.T) {
	testCases := []struct {
		value string
		err   bool
	}{
		{"4", false},
		{"6", false},
		{"10", false},
		{"3", true},
		{"11", true},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("OTP_LENGTH", tc.value)
			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_OTPReturnToClientProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")
	os.Setenv("STORE_BACKEND", "redis")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production dev-otp message", err.Error())
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := &Config{
		JWTAccessTTL:       "not-a-duration",
		JWTRefreshTTL:      "-1h",
		OTPTTL:             "",
		OTPCooldown:        "0s",
		OTPDeliveryTimeout: "3s",
		SSOTimeout:         "bogus",
		SweepInterval:      "0",
	}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", got)
	}
	if got := cfg.RefreshTTL(); got != 720*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", got)
	}
	if got := cfg.CodeTTL(); got != 5*time.Minute {
		t.Errorf("CodeTTL = %v, want 5m", got)
	}
	if got := cfg.Cooldown(); got != time.Minute {
		t.Errorf("Cooldown = %v, want 1m", got)
	}
	if got := cfg.DeliveryTimeout(); got != 3*time.Second {
		t.Errorf("DeliveryTimeout = %v, want 3s", got)
	}
	if got := cfg.ProviderTimeout(); got != 5*time.Second {
		t.Errorf("ProviderTimeout = %v, want 5s", got)
	}
	if got := cfg.SweepEvery(); got != 0 {
		t.Errorf("SweepEvery = %v, want 0", got)
	}
}

func TestConfig_Lists(t *testing.T) {
	cfg := &Config{
		KafkaBrokers:    " a:9092, ,b:9092 ",
		GoogleClientIDs: "web.apps.googleusercontent.com,ios.apps.googleusercontent.com",
		TrustedProxies:  "10.0.0.0/8, 192.168.1.4",
	}
	if got := cfg.TrustedProxiesList(); !reflect.DeepEqual(got, []string{"10.0.0.0/8", "192.168.1.4"}) {
		t.Errorf("TrustedProxiesList = %v", got)
	}
	if got := cfg.KafkaBrokersList(); !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	if got := cfg.GoogleAudiences(); len(got) != 2 {
		t.Errorf("GoogleAudiences = %v, want 2 entries", got)
	}
	if got := cfg.AppleAudiences(); got != nil {
		t.Errorf("AppleAudiences = %v, want nil", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
