package sso

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/identity/domain"
	"ridehail-identity/internal/identity/repository"
	"ridehail-identity/internal/identity/service"
)

type jwksFixture struct {
	key    *rsa.PrivateKey
	kid    string
	srv    *httptest.Server
	hits   atomic.Int32
	status atomic.Int32
}

func newJWKS(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	f := &jwksFixture{key: key, kid: "test-kid"}
	f.status.Store(http.StatusOK)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if code := int(f.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		doc := map[string]interface{}{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": f.kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(f.key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func googleClaims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            "client-1",
		"sub":            sub,
		"email":          "rider@example.com",
		"email_verified": true,
		"name":           "Rider",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func (f *jwksFixture) verifier(issuers []string) *OIDCVerifier {
	return NewOIDCVerifier(NewKeySet(f.srv.URL, f.srv.Client()), issuers, []string{"client-1", "client-2"})
}

func TestOIDCVerifier_Valid(t *testing.T) {
	f := newJWKS(t)
	v := f.verifier(googleIssuers)
	claims, err := v.Verify(context.Background(), f.sign(t, f.kid, googleClaims("g-1")))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "g-1" || claims.Email != "rider@example.com" || !claims.EmailVerified || claims.Name != "Rider" {
		t.Errorf("claims = %+v", claims)
	}
	// Second token uses the cached key set.
	if _, err := v.Verify(context.Background(), f.sign(t, f.kid, googleClaims("g-2"))); err != nil {
		t.Fatalf("Verify cached: %v", err)
	}
	if f.hits.Load() != 1 {
		t.Errorf("jwks fetched %d times, want 1", f.hits.Load())
	}
}

func TestOIDCVerifier_Rejects(t *testing.T) {
	f := newJWKS(t)
	v := f.verifier(googleIssuers)

	wrongAud := googleClaims("g-1")
	wrongAud["aud"] = "someone-else"
	wrongIss := googleClaims("g-1")
	wrongIss["iss"] = "https://evil.example.com"
	expired := googleClaims("g-1")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noSub := googleClaims("")

	cases := map[string]string{
		"wrong audience": f.sign(t, f.kid, wrongAud),
		"wrong issuer":   f.sign(t, f.kid, wrongIss),
		"expired":        f.sign(t, f.kid, expired),
		"no subject":     f.sign(t, f.kid, noSub),
		"unknown kid":    f.sign(t, "other-kid", googleClaims("g-1")),
		"garbage":        "not-a-jwt",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tok); !errors.Is(err, apperr.ErrInvalidProviderToken) {
				t.Errorf("want ErrInvalidProviderToken, got %v", err)
			}
		})
	}
}

func TestOIDCVerifier_JWKSDown(t *testing.T) {
	f := newJWKS(t)
	f.status.Store(http.StatusServiceUnavailable)
	_, err := f.verifier(googleIssuers).Verify(context.Background(), f.sign(t, f.kid, googleClaims("g-1")))
	if !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Errorf("want ErrProviderUnavailable, got %v", err)
	}
}

func TestOIDCVerifier_AppleStringEmailVerified(t *testing.T) {
	f := newJWKS(t)
	c := googleClaims("apple-1")
	c["iss"] = "https://appleid.apple.com"
	c["email_verified"] = "true"
	c["phone_number"] = "+998901234567"
	c["phone_number_verified"] = "true"
	claims, err := f.verifier(appleIssuers).Verify(context.Background(), f.sign(t, f.kid, c))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !claims.EmailVerified {
		t.Error("email_verified \"true\" should be accepted")
	}
	if claims.Phone != "+998901234567" || !claims.PhoneVerified {
		t.Errorf("phone claims = %q verified=%v", claims.Phone, claims.PhoneVerified)
	}
}

func TestOIDCVerifier_PhoneUnverifiedByDefault(t *testing.T) {
	f := newJWKS(t)
	c := googleClaims("g-1")
	c["phone_number"] = "+998901234567"
	claims, err := f.verifier(googleIssuers).Verify(context.Background(), f.sign(t, f.kid, c))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PhoneVerified {
		t.Error("phone without phone_number_verified must not count as verified")
	}
}

func newGraph(t *testing.T, valid bool, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/debug_token", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("input_token") == "" {
			t.Error("debug_token called without input_token")
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{
			"app_id": "app-1", "user_id": "fb-42", "is_valid": valid,
		}})
	})
	mux.HandleFunc("/fb-42", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "fb-42", "name": "FB Rider", "email": "fb@example.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFacebookVerifier(t *testing.T) {
	srv := newGraph(t, true, http.StatusOK)
	claims, err := NewFacebookVerifier("app-1", "secret", srv.URL).Verify(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "fb-42" || claims.Email != "fb@example.com" || claims.EmailVerified {
		t.Errorf("claims = %+v", claims)
	}
}

func TestFacebookVerifier_Errors(t *testing.T) {
	invalid := newGraph(t, false, http.StatusOK)
	if _, err := NewFacebookVerifier("app-1", "secret", invalid.URL).Verify(context.Background(), "t"); !errors.Is(err, apperr.ErrInvalidProviderToken) {
		t.Errorf("is_valid=false: want ErrInvalidProviderToken, got %v", err)
	}
	down := newGraph(t, true, http.StatusBadGateway)
	if _, err := NewFacebookVerifier("app-1", "secret", down.URL).Verify(context.Background(), "t"); !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Errorf("502: want ErrProviderUnavailable, got %v", err)
	}
	bad := newGraph(t, true, http.StatusBadRequest)
	if _, err := NewFacebookVerifier("app-1", "secret", bad.URL).Verify(context.Background(), "t"); !errors.Is(err, apperr.ErrInvalidProviderToken) {
		t.Errorf("400: want ErrInvalidProviderToken, got %v", err)
	}
	other := newGraph(t, true, http.StatusOK)
	if _, err := NewFacebookVerifier("app-2", "secret", other.URL).Verify(context.Background(), "t"); err == nil {
		t.Error("token for another app must be rejected")
	}
}

type stubVerifier struct {
	claims *VerifiedClaims
	err    error
	wait   bool
}

func (s stubVerifier) Verify(ctx context.Context, _ string) (*VerifiedClaims, error) {
	if s.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.claims, s.err
}

func TestBridge_ExistingLinkReturnsSameIdentity(t *testing.T) {
	repo := repository.NewMemoryRepository()
	existing := &domain.Identity{
		ID: "acct-1", Phone: "+998901234567", Role: domain.RolePassenger, Status: domain.StatusActive,
		Links: []domain.LinkedIdentity{{Provider: domain.ProviderGoogle, Subject: "g-1"}},
	}
	if err := repo.Create(context.Background(), existing); err != nil {
		t.Fatalf("Create: %v", err)
	}
	b := NewBridge(Registry{
		domain.ProviderGoogle: stubVerifier{claims: &VerifiedClaims{Subject: "g-1", Email: "rider@example.com", EmailVerified: true}},
	}, service.NewResolver(repo, nil, apperr.StoreLinks{}), time.Second)

	acct, err := b.Authenticate(context.Background(), domain.ProviderGoogle, "id-token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if acct.ID != "acct-1" {
		t.Errorf("Authenticate returned %s, want acct-1", acct.ID)
	}
}

func TestBridge_Errors(t *testing.T) {
	resolver := service.NewResolver(repository.NewMemoryRepository(), nil, apperr.StoreLinks{})
	b := NewBridge(Registry{
		domain.ProviderGoogle:   stubVerifier{err: apperr.ErrInvalidProviderToken},
		domain.ProviderApple:    stubVerifier{wait: true},
		domain.ProviderFacebook: stubVerifier{err: errors.New("boom")},
	}, resolver, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := b.Authenticate(ctx, domain.ProviderGoogle, "t"); !errors.Is(err, apperr.ErrInvalidProviderToken) {
		t.Errorf("google: want ErrInvalidProviderToken, got %v", err)
	}
	if _, err := b.Authenticate(ctx, domain.ProviderApple, "t"); !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Errorf("apple timeout: want ErrProviderUnavailable, got %v", err)
	}
	if _, err := b.Authenticate(ctx, domain.ProviderFacebook, "t"); !errors.Is(err, apperr.ErrInvalidProviderToken) {
		t.Errorf("facebook opaque error: want ErrInvalidProviderToken, got %v", err)
	}
	if _, err := b.Authenticate(ctx, domain.Provider("github"), "t"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("unknown provider: want ErrInvalidArgument, got %v", err)
	}
	if _, err := b.Authenticate(ctx, domain.ProviderGoogle, ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("empty token: want ErrInvalidArgument, got %v", err)
	}
}
