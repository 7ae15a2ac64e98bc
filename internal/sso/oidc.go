package sso

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ridehail-identity/internal/apperr"
)

const (
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	AppleJWKSURL  = "https://appleid.apple.com/auth/keys"
)

var (
	googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}
	appleIssuers  = []string{"https://appleid.apple.com"}
)

// OIDCVerifier checks an OpenID Connect ID token against the provider's published keys.
type OIDCVerifier struct {
	issuers   []string
	audiences []string
	keys      *KeySet
}

// NewOIDCVerifier returns a verifier accepting tokens from any of issuers for any of audiences.
func NewOIDCVerifier(keys *KeySet, issuers, audiences []string) *OIDCVerifier {
	return &OIDCVerifier{issuers: issuers, audiences: audiences, keys: keys}
}

// NewGoogleVerifier returns a verifier for Google Sign-In ID tokens issued to the given client IDs.
func NewGoogleVerifier(clientIDs []string, client *http.Client) *OIDCVerifier {
	return NewOIDCVerifier(NewKeySet(GoogleJWKSURL, client), googleIssuers, clientIDs)
}

// NewAppleVerifier returns a verifier for Sign in with Apple ID tokens issued to the given service/bundle IDs.
func NewAppleVerifier(clientIDs []string, client *http.Client) *OIDCVerifier {
	return NewOIDCVerifier(NewKeySet(AppleJWKSURL, client), appleIssuers, clientIDs)
}

// flexBool accepts true and "true"; Apple sends the *_verified claims as strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(strings.EqualFold(t, "true"))
	default:
		*b = false
	}
	return nil
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	PhoneNumber   string   `json:"phone_number"`
	PhoneVerified flexBool `json:"phone_number_verified"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*VerifiedClaims, error) {
	var claims idTokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errUnknownKey
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, apperr.ErrProviderUnavailable) {
			return nil, apperr.ErrProviderUnavailable
		}
		return nil, apperr.ErrInvalidProviderToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, apperr.ErrInvalidProviderToken
	}
	if !contains(v.issuers, claims.Issuer) {
		return nil, apperr.ErrInvalidProviderToken
	}
	if !anyAudience(claims.Audience, v.audiences) {
		return nil, apperr.ErrInvalidProviderToken
	}
	return &VerifiedClaims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
		Phone:         claims.PhoneNumber,
		PhoneVerified: bool(claims.PhoneVerified),
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func anyAudience(aud jwt.ClaimStrings, accepted []string) bool {
	for _, a := range aud {
		if contains(accepted, a) {
			return true
		}
	}
	return false
}
