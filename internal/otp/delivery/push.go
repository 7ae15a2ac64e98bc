package delivery

import (
	"context"
	"fmt"
	"net/http"
)

// PushClient sends an in-app push to the devices registered for a phone number.
// With IncludeCode the code travels in the data payload only, never in the visible
// notification text; without it the push just signals that a code was issued by SMS.
type PushClient struct {
	APIKey      string
	BaseURL     string
	IncludeCode bool
	HTTPClient  *http.Client
}

// NewPushClient returns a push client for the given gateway.
func NewPushClient(apiKey, baseURL string, includeCode bool) *PushClient {
	return &PushClient{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		IncludeCode: includeCode,
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
	}
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushMessage struct {
	To           string            `json:"to"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data"`
}

func (c *PushClient) Deliver(ctx context.Context, phone, code string) error {
	if c.APIKey == "" || c.BaseURL == "" {
		return fmt.Errorf("push: %w", ErrNotConfigured)
	}
	msg := pushMessage{
		To: phone,
		Notification: pushNotification{
			Title: "Verification code",
			Body:  "Open the app to finish signing in.",
		},
		Data: map[string]string{"type": "otp"},
	}
	if c.IncludeCode {
		msg.Data["code"] = code
	}
	return postJSON(ctx, c.HTTPClient, c.BaseURL, "key="+c.APIKey, msg)
}
