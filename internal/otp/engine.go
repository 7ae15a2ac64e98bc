// Package otp issues and verifies one-time codes. The engine owns code generation,
// the send cooldown, delivery and attempt limiting; persistence is a repository.Repository
// and delivery is a delivery.Registry, both injected.
package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/logging"
	"ridehail-identity/internal/otp/delivery"
	"ridehail-identity/internal/otp/domain"
	"ridehail-identity/internal/otp/repository"
)

// Config holds engine tunables. Non-positive fields fall back to the defaults below,
// except Cooldown where zero disables the resend check.
type Config struct {
	TTL             time.Duration
	Cooldown        time.Duration
	DeliveryTimeout time.Duration
	MaxAttempts     int
	Length          int
}

const (
	defaultTTL             = 5 * time.Minute
	defaultDeliveryTimeout = 10 * time.Second
	defaultLength          = 6
)

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = defaultDeliveryTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = domain.DefaultMaxAttempts
	}
	if c.Length <= 0 {
		c.Length = defaultLength
	}
	return c
}

// SendResult describes the challenge created by Send.
type SendResult struct {
	ChallengeID string
	Channel     domain.Channel
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
}

// Engine generates, delivers and verifies one-time codes.
type Engine struct {
	repo       repository.Repository
	deliverers delivery.Registry
	cfg        Config
	now        func() time.Time
	generate   func(length int) (string, error)

	sent     metric.Int64Counter
	verified metric.Int64Counter
}

// NewEngine returns an Engine that stores challenges in repo and delivers through deliverers.
func NewEngine(repo repository.Repository, deliverers delivery.Registry, cfg Config) *Engine {
	meter := otel.Meter("ridehail-identity/otp")
	sent, _ := meter.Int64Counter("otp.sent", metric.WithDescription("OTP send attempts by channel and outcome"))
	verified, _ := meter.Int64Counter("otp.verified", metric.WithDescription("OTP verify attempts by outcome"))
	return &Engine{
		repo:       repo,
		deliverers: deliverers,
		cfg:        cfg.withDefaults(),
		now:        func() time.Time { return time.Now().UTC() },
		generate:   GenerateCode,
		sent:       sent,
		verified:   verified,
	}
}

// WithClock returns a copy of e that reads the current time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// WithGenerator returns a copy of e that draws codes from gen.
func (e *Engine) WithGenerator(gen func(length int) (string, error)) *Engine {
	cp := *e
	cp.generate = gen
	return &cp
}

// TTL returns how long a sent code stays valid.
func (e *Engine) TTL() time.Duration { return e.cfg.TTL }

// Purge drops challenges that can no longer affect a send or verify: expired for longer than both
// the resend cooldown and the window in which a late verify still reports expired.
func (e *Engine) Purge(ctx context.Context) (int64, error) {
	keep := e.cfg.Cooldown
	if repository.ExpiredRetention > keep {
		keep = repository.ExpiredRetention
	}
	return e.repo.DeleteExpired(ctx, e.now().Add(-keep))
}

// Send supersedes any current challenge for target, stores a fresh code and delivers it over channel.
// Returns apperr.ErrRateLimited within the cooldown and apperr.ErrDeliveryFailed when the adapter fails.
// A hard delivery failure puts the replaced challenge back unchanged, so an earlier code stays usable and the
// cooldown still counts from the failed attempt. A timeout keeps the new challenge because the code may still arrive.
func (e *Engine) Send(ctx context.Context, target string, channel domain.Channel) (*SendResult, error) {
	if target == "" {
		return nil, apperr.Invalid("target is required")
	}
	d, ok := e.deliverers.For(channel)
	if !ok {
		return nil, apperr.Invalid("channel " + string(channel) + " is not available")
	}
	code, err := e.generate(e.cfg.Length)
	if err != nil {
		return nil, err
	}
	hash, err := HashCode(code)
	if err != nil {
		return nil, err
	}
	now := e.now()
	c := &domain.Challenge{
		ID:          uuid.New().String(),
		Target:      target,
		Channel:     channel,
		CodeHash:    hash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.cfg.TTL),
		MaxAttempts: e.cfg.MaxAttempts,
	}
	prev, err := e.repo.Supersede(ctx, c, e.cfg.Cooldown)
	if err != nil {
		if errors.Is(err, repository.ErrCooldown) {
			e.countSend(ctx, channel, "rate_limited")
			return nil, apperr.ErrRateLimited
		}
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
	err = d.Deliver(dctx, target, code)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("target", logging.MaskTarget(target)).Str("channel", string(channel)).
				Msg("otp: delivery timed out, challenge kept")
			e.countSend(ctx, channel, "timeout")
			return nil, apperr.ErrDeliveryFailed
		}
		if rerr := e.repo.Restore(context.WithoutCancel(ctx), c, prev); rerr != nil {
			log.Error().Err(rerr).Str("target", logging.MaskTarget(target)).Msg("otp: restore after failed delivery")
		}
		log.Warn().Err(err).Str("target", logging.MaskTarget(target)).Str("channel", string(channel)).
			Msg("otp: delivery failed")
		e.countSend(ctx, channel, "delivery_failed")
		return nil, apperr.ErrDeliveryFailed
	}
	e.countSend(ctx, channel, "sent")
	return &SendResult{
		ChallengeID: c.ID,
		Channel:     channel,
		ExpiresAt:   c.ExpiresAt,
		ExpiresIn:   e.cfg.TTL,
	}, nil
}

// Verify checks code against the current challenge for target and consumes it on match.
// A nil error means the code was valid; it can succeed at most once per challenge.
func (e *Engine) Verify(ctx context.Context, target, code string) error {
	err := e.verify(ctx, target, code)
	outcome := "valid"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	e.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return err
}

func (e *Engine) verify(ctx context.Context, target, code string) error {
	if target == "" || code == "" {
		return apperr.Invalid("target and code are required")
	}
	c, err := e.repo.GetCurrent(ctx, target)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	now := e.now()
	if err := stateError(c.StateAt(now)); err != nil {
		return err
	}

	if !CodeEqual(code, c.CodeHash) {
		// A code from a send that was since replaced is stale, not a guess.
		if c.WasSuperseded(func(h string) bool { return CodeEqual(code, h) }) {
			return apperr.ErrExpired
		}
		attempts, ok, err := e.repo.RecordFailure(ctx, target, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return e.reclassify(ctx, target, c.ID, now)
		}
		remaining := c.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return &apperr.InvalidCodeError{Remaining: remaining}
	}

	ok, err := e.repo.Consume(ctx, target, c.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return e.reclassify(ctx, target, c.ID, now)
	}
	return nil
}

// reclassify explains why a guarded write on challenge id lost a race.
func (e *Engine) reclassify(ctx context.Context, target, id string, now time.Time) error {
	c, err := e.repo.GetCurrent(ctx, target)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	if c.ID != id {
		return apperr.ErrExpired
	}
	if err := stateError(c.StateAt(now)); err != nil {
		return err
	}
	return &apperr.InvalidCodeError{Remaining: c.Remaining()}
}

func stateError(s domain.State) error {
	switch s {
	case domain.StateConsumed:
		return apperr.ErrAlreadyConsumed
	case domain.StateLocked:
		return apperr.ErrLocked
	case domain.StateExpired:
		return apperr.ErrExpired
	}
	return nil
}

func (e *Engine) countSend(ctx context.Context, channel domain.Channel, outcome string) {
	e.sent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", string(channel)),
		attribute.String("outcome", outcome),
	))
}
