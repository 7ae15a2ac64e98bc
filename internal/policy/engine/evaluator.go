// Package engine evaluates the login policy: which account states may sign in and which
// delivery channels each app may request.
package engine

import (
	"context"

	identitydomain "ridehail-identity/internal/identity/domain"
	otpdomain "ridehail-identity/internal/otp/domain"
)

// Evaluator decides login and channel eligibility.
type Evaluator interface {
	// AllowLogin reports whether acct may sign into app.
	AllowLogin(ctx context.Context, acct *identitydomain.Identity, app identitydomain.App) (bool, error)
	// AllowChannel reports whether app may request a code over channel.
	AllowChannel(ctx context.Context, app identitydomain.App, channel otpdomain.Channel) (bool, error)
}

// defaultAllowLogin is used when the policy cannot be evaluated.
func defaultAllowLogin(acct *identitydomain.Identity) bool {
	return acct != nil && acct.Status == identitydomain.StatusActive
}

// defaultAllowChannel is used when the policy cannot be evaluated.
func defaultAllowChannel(app identitydomain.App, channel otpdomain.Channel) bool {
	switch channel {
	case otpdomain.ChannelSMS, otpdomain.ChannelCall:
		return true
	case otpdomain.ChannelPush:
		return app == identitydomain.AppDriver
	}
	return false
}
