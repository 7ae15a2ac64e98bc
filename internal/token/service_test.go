package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridehail-identity/internal/apperr"
	"ridehail-identity/internal/security"
	"ridehail-identity/internal/token/repository"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	p, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	return NewService(p, repository.NewMemoryStore())
}

func TestService_IssueVerifyRoundTrip(t *testing.T) {
	s := newTestService(t)
	pair, err := s.Issue("identity-1", "driver")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := s.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "identity-1" || claims.Role != "driver" {
		t.Errorf("claims = %s/%s, want identity-1/driver", claims.Subject, claims.Role)
	}
	if _, err := s.VerifyAccess(pair.RefreshToken); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("refresh token as access: want ErrInvalidToken, got %v", err)
	}
}

func TestService_RotateThenReplayIsRevoked(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	v1, err := s.Issue("identity-1", "passenger")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	v2, err := s.Rotate(ctx, v1.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate v1: %v", err)
	}
	if v2.RefreshToken == v1.RefreshToken || v2.IdentityID != "identity-1" || v2.Role != "passenger" {
		t.Errorf("rotated pair = %+v", v2)
	}
	if _, err := s.Rotate(ctx, v1.RefreshToken); !errors.Is(err, apperr.ErrRevoked) {
		t.Errorf("Rotate v1 again: want ErrRevoked, got %v", err)
	}
	if _, err := s.Rotate(ctx, v2.RefreshToken); err != nil {
		t.Errorf("Rotate v2: %v", err)
	}
}

func TestService_ConcurrentRotateExactlyOneWins(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	pair, err := s.Issue("identity-1", "passenger")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for round := 0; round < 20; round++ {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			wins    []*Pair
			revoked int
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := s.Rotate(ctx, pair.RefreshToken)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins = append(wins, p)
				case errors.Is(err, apperr.ErrRevoked):
					revoked++
				default:
					t.Errorf("Rotate: %v", err)
				}
			}()
		}
		wg.Wait()
		if len(wins) != 1 || revoked != 1 {
			t.Fatalf("round %d: successes = %d, revoked = %d; want 1 and 1", round, len(wins), revoked)
		}
		pair = wins[0]
	}
}

func TestService_RotateInvalid(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Rotate(ctx, "garbage"); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("garbage: want ErrInvalidToken, got %v", err)
	}
	pair, _ := s.Issue("identity-1", "passenger")
	if _, err := s.Rotate(ctx, pair.AccessToken); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("access token: want ErrInvalidToken, got %v", err)
	}
}

func TestService_RevokeIsIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	pair, _ := s.Issue("identity-1", "passenger")

	if err := s.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
	if _, err := s.Rotate(ctx, pair.RefreshToken); !errors.Is(err, apperr.ErrRevoked) {
		t.Errorf("Rotate after Revoke: want ErrRevoked, got %v", err)
	}
	if err := s.Revoke(ctx, "not-a-token"); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("Revoke garbage: want ErrInvalidToken, got %v", err)
	}
}

func TestService_RevokeExpiredIsNoop(t *testing.T) {
	p, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	store := repository.NewMemoryStore()
	s := NewService(p, store)
	pair, _ := s.Issue("identity-1", "passenger")

	later := s.WithClock(func() time.Time { return time.Now().UTC().Add(time.Hour) })
	if err := later.Revoke(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Revoke expired: %v", err)
	}
	claims, _ := p.Parse(pair.AccessToken)
	if revoked, _ := store.IsRevoked(context.Background(), claims.ID); revoked {
		t.Error("an expired token should not be added to the revocation set")
	}
}

func TestService_AccessRevocationIsOptIn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	pair, _ := s.Issue("identity-1", "passenger")
	if err := s.Revoke(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := s.VerifyAccess(pair.AccessToken); err != nil {
		t.Errorf("VerifyAccess is stateless and should still accept: %v", err)
	}
	if _, err := s.VerifyAccessNotRevoked(ctx, pair.AccessToken); !errors.Is(err, apperr.ErrRevoked) {
		t.Errorf("VerifyAccessNotRevoked: want ErrRevoked, got %v", err)
	}
}
