// Package delivery sends one-time codes to users over SMS, voice call or push.
// Each channel has one adapter behind the Deliverer interface; the OTP engine picks the
// adapter by channel and never sees provider details.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ridehail-identity/internal/otp/domain"
)

const defaultTimeout = 15 * time.Second

// ErrNotConfigured is returned by an adapter whose gateway credentials are missing.
var ErrNotConfigured = errors.New("delivery: gateway not configured")

// Deliverer sends code to target over one channel. Implementations must honour ctx cancellation.
type Deliverer interface {
	Deliver(ctx context.Context, target, code string) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, target, code string) error

func (f DelivererFunc) Deliver(ctx context.Context, target, code string) error { return f(ctx, target, code) }

// Registry maps each channel to its adapter.
type Registry map[domain.Channel]Deliverer

// For returns the adapter for channel, or false if none is registered.
func (r Registry) For(channel domain.Channel) (Deliverer, bool) {
	d, ok := r[channel]
	return d, ok && d != nil
}

// postJSON sends body as JSON to url with the given Authorization header value.
// Any non-2xx status is returned as an error carrying the status and response body.
func postJSON(ctx context.Context, client *http.Client, url, auth string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delivery: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// digits strips everything but 0-9 from an E.164 phone number ("+998 90..." -> "99890...").
func digits(phone string) string {
	out := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if c := phone[i]; c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return string(out)
}
