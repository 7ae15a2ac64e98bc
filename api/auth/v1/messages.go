// Package authv1 defines the ridehail.auth.v1 AuthService messages, server and client.
// Messages travel as JSON (see api/jsoncodec).
package authv1

// SendOtpRequest asks for a login code. Channel is sms, call or push; App is passenger or driver.
type SendOtpRequest struct {
	Target  string `json:"target"`
	Channel string `json:"channel"`
	App     string `json:"app"`
}

func (x *SendOtpRequest) GetTarget() string {
	if x == nil {
		return ""
	}
	return x.Target
}

func (x *SendOtpRequest) GetChannel() string {
	if x == nil {
		return ""
	}
	return x.Channel
}

func (x *SendOtpRequest) GetApp() string {
	if x == nil {
		return ""
	}
	return x.App
}

type SendOtpResponse struct {
	Sent             bool   `json:"sent"`
	Channel          string `json:"channel"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type VerifyOtpRequest struct {
	Target string `json:"target"`
	Code   string `json:"code"`
	App    string `json:"app"`
}

func (x *VerifyOtpRequest) GetTarget() string {
	if x == nil {
		return ""
	}
	return x.Target
}

func (x *VerifyOtpRequest) GetCode() string {
	if x == nil {
		return ""
	}
	return x.Code
}

func (x *VerifyOtpRequest) GetApp() string {
	if x == nil {
		return ""
	}
	return x.App
}

type SsoLoginRequest struct {
	Provider      string `json:"provider"`
	ProviderToken string `json:"provider_token"`
}

func (x *SsoLoginRequest) GetProvider() string {
	if x == nil {
		return ""
	}
	return x.Provider
}

func (x *SsoLoginRequest) GetProviderToken() string {
	if x == nil {
		return ""
	}
	return x.ProviderToken
}

// Identity is the account view returned after login.
type Identity struct {
	Id            string   `json:"id"`
	Phone         string   `json:"phone,omitempty"`
	Email         string   `json:"email,omitempty"`
	Name          string   `json:"name,omitempty"`
	Role          string   `json:"role"`
	PhoneVerified bool     `json:"phone_verified"`
	EmailVerified bool     `json:"email_verified"`
	Providers     []string `json:"providers,omitempty"`
}

// TokenPair carries unix-second expiry times.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
	TokenType        string `json:"token_type"`
}

// LoginResponse is returned by VerifyOtp and SsoLogin.
type LoginResponse struct {
	Identity *Identity  `json:"identity"`
	Tokens   *TokenPair `json:"tokens"`
}

type RefreshTokensRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (x *RefreshTokensRequest) GetRefreshToken() string {
	if x == nil {
		return ""
	}
	return x.RefreshToken
}

type RefreshTokensResponse struct {
	Tokens *TokenPair `json:"tokens"`
}

// LogoutRequest tokens are optional; a missing access token falls back to the Bearer header.
type LogoutRequest struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (x *LogoutRequest) GetAccessToken() string {
	if x == nil {
		return ""
	}
	return x.AccessToken
}

func (x *LogoutRequest) GetRefreshToken() string {
	if x == nil {
		return ""
	}
	return x.RefreshToken
}

type LogoutResponse struct {
	Ok bool `json:"ok"`
}

type IntrospectRequest struct {
	AccessToken string `json:"access_token"`
}

func (x *IntrospectRequest) GetAccessToken() string {
	if x == nil {
		return ""
	}
	return x.AccessToken
}

type IntrospectResponse struct {
	IdentityId string `json:"identity_id"`
	Role       string `json:"role"`
	ExpiresAt  int64  `json:"expires_at"`
}
