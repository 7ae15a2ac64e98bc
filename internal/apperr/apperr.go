// Package apperr defines the error kinds returned by the authentication core.
// Every business failure is one of these kinds so transports can map them to
// status codes and user-facing messages without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure.
type Kind string

const (
	KindUnknown               Kind = ""
	KindRateLimited           Kind = "rate_limited"
	KindDeliveryFailed        Kind = "delivery_failed"
	KindNotFound              Kind = "not_found"
	KindExpired               Kind = "expired"
	KindInvalidCode           Kind = "invalid_code"
	KindLocked                Kind = "locked"
	KindAlreadyConsumed       Kind = "already_consumed"
	KindInvalidProviderToken  Kind = "invalid_provider_token"
	KindProviderUnavailable   Kind = "provider_unavailable"
	KindConflictingIdentity   Kind = "conflicting_identity"
	KindCrossAppNotRegistered Kind = "cross_app_not_registered"
	KindInvalidToken          Kind = "invalid_token"
	KindRevoked               Kind = "revoked"
	KindUnauthorized          Kind = "unauthorized"
	KindInvalidArgument       Kind = "invalid_argument"
)

// kindError is the sentinel type; each Err* value is unique and comparable with errors.Is.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newKind(k Kind, msg string) error { return &kindError{kind: k, msg: msg} }

// Sentinel errors, one per kind.
var (
	ErrRateLimited           = newKind(KindRateLimited, "too many code requests; try again later")
	ErrDeliveryFailed        = newKind(KindDeliveryFailed, "code delivery failed")
	ErrNotFound              = newKind(KindNotFound, "no outstanding code for target")
	ErrExpired               = newKind(KindExpired, "code expired")
	ErrInvalidCode           = newKind(KindInvalidCode, "invalid code")
	ErrLocked                = newKind(KindLocked, "too many invalid attempts; request a new code")
	ErrAlreadyConsumed       = newKind(KindAlreadyConsumed, "code already used")
	ErrInvalidProviderToken  = newKind(KindInvalidProviderToken, "invalid identity provider token")
	ErrProviderUnavailable   = newKind(KindProviderUnavailable, "identity provider unavailable")
	ErrConflictingIdentity   = newKind(KindConflictingIdentity, "identity conflicts with an existing account")
	ErrCrossAppNotRegistered = newKind(KindCrossAppNotRegistered, "register in the passenger app first")
	ErrInvalidToken          = newKind(KindInvalidToken, "invalid or expired token")
	ErrRevoked               = newKind(KindRevoked, "token has been revoked")
	ErrUnauthorized          = newKind(KindUnauthorized, "unauthorized")
	ErrInvalidArgument       = newKind(KindInvalidArgument, "invalid argument")
)

// InvalidCodeError is returned on a wrong code while attempts remain.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code; %d attempts remaining", e.Remaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// StoreLinks points a user at the app that must be installed first.
type StoreLinks struct {
	AppStore  string
	PlayStore string
}

// CrossAppError is returned when a driver-app login has no matching passenger account.
type CrossAppError struct {
	Links StoreLinks
}

func (e *CrossAppError) Error() string { return ErrCrossAppNotRegistered.Error() }

func (e *CrossAppError) Unwrap() error { return ErrCrossAppNotRegistered }

// Invalid wraps ErrInvalidArgument with a field-specific message.
func Invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidArgument)
}

// KindOf returns the kind of err, or KindUnknown for infrastructure failures.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Message returns the client-facing text for err: the kind's own message, or the text given to
// Invalid and InvalidCodeError. Wrapped detail such as a transport error is dropped.
// Returns "" for errors that carry no kind.
func Message(err error) string {
	var ic *InvalidCodeError
	if errors.As(err, &ic) {
		return ic.Error()
	}
	var ke *kindError
	if !errors.As(err, &ke) {
		return ""
	}
	if ke.kind == KindInvalidArgument {
		return err.Error()
	}
	return ke.msg
}

// Remaining returns the remaining attempts carried by an InvalidCodeError.
func Remaining(err error) (int, bool) {
	var ic *InvalidCodeError
	if errors.As(err, &ic) {
		return ic.Remaining, true
	}
	return 0, false
}

// Links returns the store links carried by a CrossAppError.
func Links(err error) (StoreLinks, bool) {
	var ca *CrossAppError
	if errors.As(err, &ca) {
		return ca.Links, true
	}
	return StoreLinks{}, false
}

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindDeliveryFailed, KindProviderUnavailable, KindRateLimited:
		return true
	}
	return false
}
