package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ridehail-identity/internal/apperr"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// FacebookVerifier checks a Facebook user access token with the Graph API debug_token endpoint
// and reads the profile it belongs to.
type FacebookVerifier struct {
	AppID      string
	AppSecret  string
	BaseURL    string
	HTTPClient *http.Client
}

// NewFacebookVerifier returns a verifier for tokens issued to appID.
func NewFacebookVerifier(appID, appSecret, baseURL string) *FacebookVerifier {
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	return &FacebookVerifier{
		AppID:      appID,
		AppSecret:  appSecret,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type debugTokenResponse struct {
	Data struct {
		AppID     string `json:"app_id"`
		UserID    string `json:"user_id"`
		IsValid   bool   `json:"is_valid"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"data"`
}

type graphProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Verify treats the returned email as unverified; Facebook does not assert verification in the token.
func (v *FacebookVerifier) Verify(ctx context.Context, token string) (*VerifiedClaims, error) {
	q := url.Values{}
	q.Set("input_token", token)
	q.Set("access_token", v.AppID+"|"+v.AppSecret)
	var dbg debugTokenResponse
	if err := v.get(ctx, "/debug_token?"+q.Encode(), &dbg); err != nil {
		return nil, err
	}
	if !dbg.Data.IsValid || dbg.Data.AppID != v.AppID || dbg.Data.UserID == "" {
		return nil, apperr.ErrInvalidProviderToken
	}

	q = url.Values{}
	q.Set("fields", "id,name,email")
	q.Set("access_token", token)
	var profile graphProfile
	if err := v.get(ctx, "/"+url.PathEscape(dbg.Data.UserID)+"?"+q.Encode(), &profile); err != nil {
		return nil, err
	}
	if profile.ID != "" && profile.ID != dbg.Data.UserID {
		return nil, apperr.ErrInvalidProviderToken
	}
	return &VerifiedClaims{
		Subject: dbg.Data.UserID,
		Email:   profile.Email,
		Name:    profile.Name,
	}, nil
}

// get decodes a Graph API response. 5xx and transport errors are provider outages; 4xx means a bad token.
func (v *FacebookVerifier) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: graph status=%d", apperr.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return apperr.ErrInvalidProviderToken
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.ErrInvalidProviderToken
	}
	return nil
}
