package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"ridehail-identity/internal/db"
	"ridehail-identity/internal/db/migrate"
	"ridehail-identity/internal/otp/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newChallenge(id, target string, at time.Time) *domain.Challenge {
	return &domain.Challenge{
		ID:          id,
		Target:      target,
		Channel:     domain.ChannelSMS,
		CodeHash:    "hash-" + id,
		CreatedAt:   at,
		ExpiresAt:   at.Add(5 * time.Minute),
		MaxAttempts: domain.DefaultMaxAttempts,
	}
}

func newRedisRepo(t *testing.T) Repository {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRepository(rdb)
}

// newPostgresRepo runs against DATABASE_URL with the schema migrated up; the table is emptied first.
func newPostgresRepo(t *testing.T) Repository {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up", 0); err != nil {
		t.Skipf("Database migration failed (expected in test environment): %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_, err = conn.Exec(`DELETE FROM otp_challenges`)
	require.NoError(t, err)
	return NewPostgresRepository(conn)
}

func backends() map[string]func(t *testing.T) Repository {
	return map[string]func(t *testing.T) Repository{
		"memory":   func(t *testing.T) Repository { return NewMemoryRepository() },
		"redis":    newRedisRepo,
		"postgres": newPostgresRepo,
	}
}

func supersede(t *testing.T, r Repository, c *domain.Challenge) *domain.Challenge {
	t.Helper()
	prev, err := r.Supersede(context.Background(), c, time.Minute)
	require.NoError(t, err)
	return prev
}

func TestRepository_SupersedeReplacesAndRespectsCooldown(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"

			supersede(t, r, newChallenge("c1", target, base))

			_, err := r.Supersede(ctx, newChallenge("c2", target, base.Add(30*time.Second)), time.Minute)
			require.ErrorIs(t, err, ErrCooldown)
			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "c1", cur.ID)

			c3 := newChallenge("c3", target, base.Add(61*time.Second))
			c3.Channel = domain.ChannelCall
			supersede(t, r, c3)
			cur, err = r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "c3", cur.ID)
			require.Equal(t, domain.ChannelCall, cur.Channel)
			require.Equal(t, "hash-c3", cur.CodeHash)
			require.Equal(t, 0, cur.AttemptsUsed)
			require.Nil(t, cur.ConsumedAt)
			require.True(t, cur.CreatedAt.Equal(c3.CreatedAt))
			require.True(t, cur.ExpiresAt.Equal(c3.ExpiresAt))
		})
	}
}

func TestRepository_GetCurrentMissing(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			cur, err := newRepo(t).GetCurrent(context.Background(), "+10000000000")
			require.NoError(t, err)
			require.Nil(t, cur)
		})
	}
}

func TestRepository_RecordFailureStopsAtMax(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			supersede(t, r, newChallenge("c1", target, base))

			for want := 1; want <= domain.DefaultMaxAttempts; want++ {
				n, ok, err := r.RecordFailure(ctx, target, "c1")
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, want, n)
			}
			_, ok, err := r.RecordFailure(ctx, target, "c1")
			require.NoError(t, err)
			require.False(t, ok, "a locked challenge must not count further failures")

			ok, err = r.Consume(ctx, target, "c1", base.Add(time.Second))
			require.NoError(t, err)
			require.False(t, ok, "a locked challenge must not be consumable")

			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, domain.StateLocked, cur.StateAt(base.Add(time.Second)))
		})
	}
}

func TestRepository_StaleIDIsIgnored(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			supersede(t, r, newChallenge("old", target, base))
			supersede(t, r, newChallenge("new", target, base.Add(2*time.Minute)))

			_, ok, err := r.RecordFailure(ctx, target, "old")
			require.NoError(t, err)
			require.False(t, ok)
			ok, err = r.Consume(ctx, target, "old", base.Add(2*time.Minute))
			require.NoError(t, err)
			require.False(t, ok)
			require.NoError(t, r.Restore(ctx, newChallenge("old", target, base), nil))

			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "new", cur.ID)
		})
	}
}

func TestRepository_ConsumeOnce(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "rider@example.com"
			supersede(t, r, newChallenge("c1", target, base))

			ok, err := r.Consume(ctx, target, "c1", base.Add(10*time.Second))
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = r.Consume(ctx, target, "c1", base.Add(11*time.Second))
			require.NoError(t, err)
			require.False(t, ok)

			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.NotNil(t, cur.ConsumedAt)
			require.Equal(t, domain.StateConsumed, cur.StateAt(base.Add(time.Hour)))
		})
	}
}

func TestRepository_ConsumeAfterExpiry(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			c := newChallenge("c1", target, base)
			supersede(t, r, c)

			ok, err := r.Consume(ctx, target, "c1", c.ExpiresAt)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestRepository_ConcurrentConsumeSingleWinner(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			supersede(t, r, newChallenge("c1", target, base))

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := r.Consume(ctx, target, "c1", base.Add(time.Second))
					if err != nil {
						t.Errorf("Consume: %v", err)
						return
					}
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			require.Equal(t, 1, wins)
		})
	}
}

func TestRepository_RestorePutsPreviousBack(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			supersede(t, r, newChallenge("c1", target, base))
			_, _, err := r.RecordFailure(ctx, target, "c1")
			require.NoError(t, err)

			c2 := newChallenge("c2", target, base.Add(61*time.Second))
			prev := supersede(t, r, c2)
			require.NotNil(t, prev)
			require.Equal(t, "c1", prev.ID)
			require.Equal(t, 1, prev.AttemptsUsed)
			require.NoError(t, r.Restore(ctx, c2, prev))

			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "c1", cur.ID)
			require.Equal(t, "hash-c1", cur.CodeHash)
			require.Equal(t, 1, cur.AttemptsUsed)
			require.Nil(t, cur.ConsumedAt)
			require.Empty(t, cur.Superseded)
			require.True(t, cur.CreatedAt.Equal(base))
			require.True(t, cur.LastSendAt().Equal(c2.CreatedAt))

			ok, err := r.Consume(ctx, target, "c1", c2.CreatedAt)
			require.NoError(t, err)
			require.True(t, ok, "the restored code stays usable")
		})
	}
}

func TestRepository_CooldownCountsFromFailedSend(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			supersede(t, r, newChallenge("c1", target, base))
			c2 := newChallenge("c2", target, base.Add(61*time.Second))
			prev := supersede(t, r, c2)
			require.NoError(t, r.Restore(ctx, c2, prev))

			_, err := r.Supersede(ctx, newChallenge("c3", target, c2.CreatedAt.Add(30*time.Second)), time.Minute)
			require.ErrorIs(t, err, ErrCooldown)

			c4 := newChallenge("c4", target, c2.CreatedAt.Add(61*time.Second))
			prev = supersede(t, r, c4)
			require.Equal(t, "c1", prev.ID)
			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "c4", cur.ID)
			require.Equal(t, []string{"hash-c1"}, cur.Superseded)
		})
	}
}

func TestRepository_RestoreWithoutPreviousDeletes(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			c1 := newChallenge("c1", target, base)
			require.Nil(t, supersede(t, r, c1))
			require.NoError(t, r.Restore(ctx, c1, nil))

			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Nil(t, cur)
			supersede(t, r, newChallenge("c2", target, base.Add(time.Second)))
		})
	}
}

func TestRepository_RestoreIgnoresReplacedChallenge(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			c1 := newChallenge("c1", target, base)
			supersede(t, r, c1)
			supersede(t, r, newChallenge("c2", target, base.Add(2*time.Minute)))
			require.NoError(t, r.Restore(ctx, c1, nil))

			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "c2", cur.ID)
		})
	}
}

func TestMemoryRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	supersede(t, r, newChallenge("a", "+1", base))
	supersede(t, r, newChallenge("b", "+2", base.Add(time.Hour)))

	n, err := r.DeleteExpired(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	cur, _ := r.GetCurrent(ctx, "+1")
	require.Nil(t, cur)
	cur, _ = r.GetCurrent(ctx, "+2")
	require.NotNil(t, cur)
}

func TestMemoryRepository_GetCurrentReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	supersede(t, r, newChallenge("a", "+1", base))
	cur, _ := r.GetCurrent(ctx, "+1")
	cur.AttemptsUsed = 99

	again, _ := r.GetCurrent(ctx, "+1")
	require.Equal(t, 0, again.AttemptsUsed)
}

func TestRedisRepository_KeyCarriesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	r := NewRedisRepository(rdb)
	supersede(t, r, newChallenge("a", "+1", base))

	ttl := mr.TTL(challengeKey("+1"))
	require.Equal(t, 5*time.Minute+ExpiredRetention, ttl)
}

func TestRepository_SupersedeRemembersReplacedHashes(t *testing.T) {
	for name, newRepo := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := newRepo(t)
			target := "+998901234567"
			at := base
			for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
				supersede(t, r, newChallenge(id, target, at))
				at = at.Add(2 * time.Minute)
			}
			cur, err := r.GetCurrent(ctx, target)
			require.NoError(t, err)
			require.Equal(t, "f", cur.ID)
			require.Equal(t, []string{"hash-e", "hash-d", "hash-c", "hash-b"}, cur.Superseded)
			require.True(t, cur.WasSuperseded(func(h string) bool { return h == "hash-e" }))
			require.False(t, cur.WasSuperseded(func(h string) bool { return h == "hash-a" }))
		})
	}
}
