package domain

import (
	"strings"
	"time"
)

// Channel is the delivery channel for a one-time code.
type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelCall Channel = "call"
	ChannelPush Channel = "push"
)

// ParseChannel returns the channel for s (case-insensitive), or false if unknown.
func ParseChannel(s string) (Channel, bool) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelSMS, ChannelCall, ChannelPush:
		return c, true
	}
	return "", false
}

// DefaultMaxAttempts is the number of wrong guesses a challenge tolerates before it locks.
const DefaultMaxAttempts = 3

// Challenge is the outstanding verification attempt for one target (stored in otp_challenges).
// At most one challenge per target is current; storing a new one replaces the previous.
type Challenge struct {
	ID           string
	Target       string
	Channel      Channel
	CodeHash     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AttemptsUsed int
	MaxAttempts  int
	ConsumedAt   *time.Time // nil until verified
	// SentAt is the last send attempt for the target. It only differs from CreatedAt after a
	// failed resend put this challenge back.
	SentAt time.Time
	// Superseded holds hashes of the codes this challenge replaced, newest first.
	Superseded []string
}

// MaxSuperseded caps how many replaced code hashes a challenge remembers.
const MaxSuperseded = 4

// WasSuperseded reports whether match accepts any of the hashes this challenge replaced.
func (c *Challenge) WasSuperseded(match func(codeHash string) bool) bool {
	for _, h := range c.Superseded {
		if match(h) {
			return true
		}
	}
	return false
}

// LastSendAt is the moment the send cooldown counts from.
func (c *Challenge) LastSendAt() time.Time {
	if c.SentAt.After(c.CreatedAt) {
		return c.SentAt
	}
	return c.CreatedAt
}

// NextSuperseded returns the superseded list a challenge replacing c should carry.
func (c *Challenge) NextSuperseded() []string {
	out := make([]string, 0, MaxSuperseded)
	out = append(out, c.CodeHash)
	for _, h := range c.Superseded {
		if len(out) == MaxSuperseded {
			break
		}
		out = append(out, h)
	}
	return out
}

// State is the lifecycle position of a challenge at a point in time.
type State int

const (
	StateActive State = iota
	StateConsumed
	StateLocked
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateConsumed:
		return "consumed"
	case StateLocked:
		return "locked"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// StateAt classifies the challenge at now. Consumed wins over locked, which wins over expired.
func (c *Challenge) StateAt(now time.Time) State {
	switch {
	case c.ConsumedAt != nil:
		return StateConsumed
	case c.AttemptsUsed >= c.MaxAttempts:
		return StateLocked
	case !now.Before(c.ExpiresAt):
		return StateExpired
	}
	return StateActive
}

// Remaining returns how many wrong guesses are still allowed.
func (c *Challenge) Remaining() int {
	if r := c.MaxAttempts - c.AttemptsUsed; r > 0 {
		return r
	}
	return 0
}
