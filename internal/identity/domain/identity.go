package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Identity is a local rider or driver account.
type Identity struct {
	ID            string
	Phone         string // E.164; globally unique when set
	Email         string
	PhoneVerified bool
	EmailVerified bool
	Name          string
	Role          Role
	Status        Status
	Links         []LinkedIdentity
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Role is the highest app the account has signed into. Passengers become drivers on their
// first driver-app login; the role never moves back.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// Status is the account lifecycle state. Only active accounts may sign in.
type Status string

const (
	StatusActive        Status = "active"
	StatusBlocked       Status = "blocked"
	StatusPendingDelete Status = "pending_delete"
)

// App is the client application a login comes from.
type App string

const (
	AppPassenger App = "passenger"
	AppDriver    App = "driver"
)

// ParseApp returns the app for s (case-insensitive), or false if unknown.
func ParseApp(s string) (App, bool) {
	switch a := App(strings.ToLower(strings.TrimSpace(s))); a {
	case AppPassenger, AppDriver:
		return a, true
	}
	return "", false
}

// Provider is a third-party identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderApple    Provider = "apple"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider returns the provider for s (case-insensitive), or false if unknown.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderApple, ProviderFacebook:
		return p, true
	}
	return "", false
}

// LinkedIdentity binds an account to one provider subject. (Provider, Subject) is globally
// unique and an account holds at most one link per provider.
type LinkedIdentity struct {
	Provider Provider
	Subject  string
	Email    string
	LinkedAt time.Time
}

// LinkFor returns the account's link for provider, if any.
func (i *Identity) LinkFor(p Provider) (LinkedIdentity, bool) {
	for _, l := range i.Links {
		if l.Provider == p {
			return l, true
		}
	}
	return LinkedIdentity{}, false
}

// Validate validates the identity for persistence. Returns an error describing the first validation failure.
func (i *Identity) Validate() error {
	if i.ID == "" {
		return errors.New("id is required")
	}
	if i.Phone == "" && i.Email == "" && len(i.Links) == 0 {
		return errors.New("identity needs a phone, an email or a linked provider")
	}
	if i.Role == "" {
		i.Role = RolePassenger
	}
	if i.Status == "" {
		i.Status = StatusActive
	}
	return nil
}

// Criteria is what a login proved about the caller. It is either PhoneCriteria or SSOCriteria.
type Criteria interface {
	criteria()
}

// PhoneCriteria is a phone number proven by a one-time code, from the given app.
type PhoneCriteria struct {
	Phone string
	App   App
}

// SSOCriteria is a subject asserted by a verified provider token.
type SSOCriteria struct {
	Provider      Provider
	Subject       string
	Email         string
	EmailVerified bool
	Phone         string
	PhoneVerified bool
	Name          string
}

func (PhoneCriteria) criteria() {}
func (SSOCriteria) criteria()   {}

var (
	// ErrInvalidPhone is returned by NormalizePhone for input that is not an E.164 number.
	ErrInvalidPhone = errors.New("phone must be in E.164 format")

	e164       = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// NormalizePhone strips common separators and checks the result is E.164 ("+998 (90) 123-45-67" -> "+998901234567").
func NormalizePhone(s string) (string, error) {
	p := phoneNoise.Replace(strings.TrimSpace(s))
	if strings.HasPrefix(p, "00") {
		p = "+" + p[2:]
	}
	if !e164.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
