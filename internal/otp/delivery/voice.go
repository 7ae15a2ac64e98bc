package delivery

import (
	"context"
	"fmt"
	"net/http"
)

// VoiceClient asks a voice gateway to call the phone and read the code aloud.
type VoiceClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewVoiceClient returns a voice-call client for the given gateway.
func NewVoiceClient(apiKey, baseURL string) *VoiceClient {
	return &VoiceClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *VoiceClient) Deliver(ctx context.Context, phone, code string) error {
	if c.APIKey == "" || c.BaseURL == "" {
		return fmt.Errorf("voice: %w", ErrNotConfigured)
	}
	body := map[string]interface{}{
		"to":   phone,
		"type": "otp_call",
		"code": code,
	}
	return postJSON(ctx, c.HTTPClient, c.BaseURL, "Bearer "+c.APIKey, body)
}
