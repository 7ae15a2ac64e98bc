package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail-identity/internal/otp/domain"
)

// ExpiredRetention is how long an expired challenge is kept so a late verify reports expired
// rather than not found. Sweepers delete rows that expired longer ago than this.
const ExpiredRetention = 15 * time.Minute

const challengeKeyPrefix = "otp:challenge:"

// RedisRepository keeps the current challenge for a target in a single hash. Every mutation
// runs as a Lua script so the guard and the write happen atomically on the server.
type RedisRepository struct {
	rdb *redis.Client
}

// NewRedisRepository returns a code store backed by rdb.
func NewRedisRepository(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

func challengeKey(target string) string { return challengeKeyPrefix + target }

// KEYS[1] challenge key
// ARGV id, channel, code_hash, created_at, expires_at, max_attempts, cooldown, ttl, max_superseded (times in ms)
// Returns {0} inside the cooldown, otherwise {1, <previous hash as a flat field/value list>}.
var supersedeScript = redis.NewScript(`
local prev = redis.call('HGETALL', KEYS[1])
local h = {}
for i = 1, #prev, 2 do h[prev[i]] = prev[i + 1] end
if h['created_at'] then
	local last = math.max(tonumber(h['created_at']), tonumber(h['sent_at'] or '0'))
	if (tonumber(ARGV[4]) - last) < tonumber(ARGV[7]) then
		return {0}
	end
end
local parts = {}
if h['code_hash'] then
	table.insert(parts, h['code_hash'])
	for x in string.gmatch(h['superseded'] or '', '%S+') do
		if #parts >= tonumber(ARGV[9]) then break end
		table.insert(parts, x)
	end
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'channel', ARGV[2], 'code_hash', ARGV[3],
	'created_at', ARGV[4], 'expires_at', ARGV[5], 'attempts', 0, 'max_attempts', ARGV[6], 'consumed_at', 0,
	'superseded', table.concat(parts, ' '), 'sent_at', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[8])
return {1, prev}
`)

var recordFailureScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'id', 'consumed_at', 'attempts', 'max_attempts')
if not h[1] or h[1] ~= ARGV[1] then return -1 end
if tonumber(h[2]) ~= 0 then return -1 end
if tonumber(h[3]) >= tonumber(h[4]) then return -1 end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

var consumeScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'id', 'consumed_at', 'attempts', 'max_attempts', 'expires_at')
if not h[1] or h[1] ~= ARGV[1] then return 0 end
if tonumber(h[2]) ~= 0 then return 0 end
if tonumber(h[3]) >= tonumber(h[4]) then return 0 end
if tonumber(h[5]) <= tonumber(ARGV[2]) then return 0 end
redis.call('HSET', KEYS[1], 'consumed_at', ARGV[2])
return 1
`)

// KEYS[1] challenge key; ARGV[1] id of the failed challenge, then the restored hash as field/value pairs.
// With no pairs the failed challenge is deleted. The key keeps the failed send's TTL, which outlives prev.
var restoreScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
	return 0
end
if #ARGV == 1 then
	return redis.call('DEL', KEYS[1])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 1
`)

func (r *RedisRepository) Supersede(ctx context.Context, c *domain.Challenge, cooldown time.Duration) (*domain.Challenge, error) {
	ttl := c.ExpiresAt.Sub(c.CreatedAt)
	if cooldown > ttl {
		ttl = cooldown
	}
	ttl += ExpiredRetention
	res, err := supersedeScript.Run(ctx, r.rdb, []string{challengeKey(c.Target)},
		c.ID, string(c.Channel), c.CodeHash,
		c.CreatedAt.UnixMilli(), c.ExpiresAt.UnixMilli(), c.MaxAttempts,
		cooldown.Milliseconds(), ttl.Milliseconds(), domain.MaxSuperseded,
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || res[0] == int64(0) {
		return nil, ErrCooldown
	}
	if len(res) < 2 {
		return nil, nil
	}
	flat, _ := res[1].([]interface{})
	h := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		h[k] = v
	}
	return fromHash(c.Target, h), nil
}

// GetCurrent returns the challenge for target, or nil if not found.
func (r *RedisRepository) GetCurrent(ctx context.Context, target string) (*domain.Challenge, error) {
	h, err := r.rdb.HGetAll(ctx, challengeKey(target)).Result()
	if err != nil {
		return nil, err
	}
	return fromHash(target, h), nil
}

func fromHash(target string, h map[string]string) *domain.Challenge {
	if len(h) == 0 || h["id"] == "" {
		return nil
	}
	c := &domain.Challenge{
		ID:       h["id"],
		Target:   target,
		Channel:  domain.Channel(h["channel"]),
		CodeHash: h["code_hash"],
	}
	c.CreatedAt = millis(h["created_at"])
	c.ExpiresAt = millis(h["expires_at"])
	c.SentAt = millis(h["sent_at"])
	c.AttemptsUsed, _ = strconv.Atoi(h["attempts"])
	c.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	c.Superseded = strings.Fields(h["superseded"])
	if consumed := millis(h["consumed_at"]); !consumed.IsZero() {
		c.ConsumedAt = &consumed
	}
	return c
}

func (r *RedisRepository) RecordFailure(ctx context.Context, target, id string) (int, bool, error) {
	n, err := recordFailureScript.Run(ctx, r.rdb, []string{challengeKey(target)}, id).Int()
	if err != nil {
		return 0, false, err
	}
	if n < 0 {
		return 0, false, nil
	}
	return n, true, nil
}

func (r *RedisRepository) Consume(ctx context.Context, target, id string, now time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, r.rdb, []string{challengeKey(target)}, id, now.UnixMilli()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisRepository) Restore(ctx context.Context, failed, prev *domain.Challenge) error {
	args := []interface{}{failed.ID}
	if prev != nil {
		var consumed int64
		if prev.ConsumedAt != nil {
			consumed = prev.ConsumedAt.UnixMilli()
		}
		args = append(args,
			"id", prev.ID, "channel", string(prev.Channel), "code_hash", prev.CodeHash,
			"created_at", prev.CreatedAt.UnixMilli(), "expires_at", prev.ExpiresAt.UnixMilli(),
			"attempts", prev.AttemptsUsed, "max_attempts", prev.MaxAttempts, "consumed_at", consumed,
			"superseded", strings.Join(prev.Superseded, " "), "sent_at", failed.CreatedAt.UnixMilli(),
		)
	}
	return restoreScript.Run(ctx, r.rdb, []string{challengeKey(failed.Target)}, args...).Err()
}

// DeleteExpired is a no-op: challenge keys carry their own TTL.
func (r *RedisRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
