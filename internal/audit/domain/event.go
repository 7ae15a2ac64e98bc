package domain

import "time"

// EventType names an authentication event.
type EventType string

const (
	EventOtpSent        EventType = "otp_sent"
	EventOtpVerified    EventType = "otp_verified"
	EventOtpFailed      EventType = "otp_failed"
	EventSSOLogin       EventType = "sso_login"
	EventSSOFailed      EventType = "sso_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventRefreshReplay  EventType = "refresh_replay"
	EventLogout         EventType = "logout"
	EventCrossAppDenied EventType = "cross_app_denied"
)

// Outcome is success or failure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record. Target is always masked; codes and tokens never appear.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"event_type"`
	Outcome    Outcome   `json:"outcome"`
	IdentityID string    `json:"identity_id,omitempty"`
	Target     string    `json:"target,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	App        string    `json:"app,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
