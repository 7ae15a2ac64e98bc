// Package sweeper periodically purges expired OTP challenges and revocation entries.
// Correctness never depends on it: every read path checks expiry itself.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ChallengePurger drops challenges that can no longer affect a send or verify.
type ChallengePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// RevocationPurger drops revocation entries for tokens that expired before the cutoff.
type RevocationPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Result counts what one sweep removed.
type Result struct {
	Challenges  int64
	Revocations int64
}

// Sweeper runs both purges on a fixed cadence.
type Sweeper struct {
	challenges  ChallengePurger
	revocations RevocationPurger
	interval    time.Duration
	now         func() time.Time
}

// New returns a Sweeper. Either purger may be nil.
func New(challenges ChallengePurger, revocations RevocationPurger, interval time.Duration) *Sweeper {
	return &Sweeper{
		challenges:  challenges,
		revocations: revocations,
		interval:    interval,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs a single sweep. A failing purge does not stop the other.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error
	if s.challenges != nil {
		n, err := s.challenges.Purge(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		res.Challenges = n
	}
	if s.revocations != nil {
		n, err := s.revocations.Purge(ctx, s.now())
		if err != nil {
			errs = append(errs, err)
		}
		res.Revocations = n
	}
	return res, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done. A non-positive interval returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("sweeper: purge failed")
			}
			if res.Challenges > 0 || res.Revocations > 0 {
				log.Info().Int64("challenges", res.Challenges).Int64("revocations", res.Revocations).Msg("sweeper: purged")
			}
		}
	}
}
