package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:jti:"

// RedisStore keeps one key per revoked id, expiring with the token.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore returns a revocation set backed by rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

// Revoke uses SET NX so the first caller wins.
func (s *RedisStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.rdb.SetNX(ctx, revokedKeyPrefix+jti, expiresAt.Unix(), ttl).Result()
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	return n == 1, err
}

// DeleteExpired is a no-op: keys expire with their token.
func (s *RedisStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
