package delivery

import (
	"context"
	"fmt"
	"net/http"
)

const defaultSMSBaseURL = "https://notify.eskiz.uz/api/message/sms/send"

// SMSClient sends codes through an HTTP SMS gateway.
type SMSClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewSMSClient returns a client that uses the given API key and optional base URL/sender.
func NewSMSClient(apiKey, baseURL, sender string) *SMSClient {
	if baseURL == "" {
		baseURL = defaultSMSBaseURL
	}
	return &SMSClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Deliver sends the code to phone by SMS. The gateway receives digits only. Does not log the code.
func (c *SMSClient) Deliver(ctx context.Context, phone, code string) error {
	if c.APIKey == "" {
		return fmt.Errorf("sms: %w", ErrNotConfigured)
	}
	body := map[string]interface{}{
		"mobile_phone": digits(phone),
		"message":      fmt.Sprintf("Your verification code: %s", code),
		"code":         code,
	}
	if c.Sender != "" {
		body["from"] = c.Sender
	}
	return postJSON(ctx, c.HTTPClient, c.BaseURL, "Bearer "+c.APIKey, body)
}
