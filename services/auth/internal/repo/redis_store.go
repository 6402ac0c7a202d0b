package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/school_admin/pkg/tokens"
)

// Token records live at <prefix>rt:<sha256> as hashes expiring with the token;
// <prefix>rtp:<principal> holds the set of a principal's token hashes.
// Every write runs as one Lua script so a principal's records never diverge.
// The scripts touch keys not passed in KEYS and therefore need a non-cluster deployment.

const addScript = `
if ARGV[1] == "1" then
  local old = redis.call("SMEMBERS", KEYS[2])
  for _, h in ipairs(old) do
    redis.call("DEL", ARGV[2] .. h)
  end
  redis.call("DEL", KEYS[2])
end
redis.call("HSET", KEYS[1], "jti", ARGV[5], "sub", ARGV[6], "role", ARGV[7], "name", ARGV[8], "exp", ARGV[3])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
redis.call("SADD", KEYS[2], ARGV[9])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[4]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[4])
end
return 1
`

const revokeScript = `
local sub = redis.call("HGET", KEYS[1], "sub")
if not sub then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. sub, ARGV[2])
return 1
`

const rotateScript = `
local exp = redis.call("HGET", KEYS[1], "exp")
if not exp then
  return 0
end
if tonumber(exp) <= tonumber(ARGV[10]) then
  return -1
end
local sub = redis.call("HGET", KEYS[1], "sub")
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. sub, ARGV[2])
redis.call("HSET", KEYS[2], "jti", ARGV[6], "sub", ARGV[7], "role", ARGV[8], "name", ARGV[9], "exp", ARGV[4])
redis.call("PEXPIREAT", KEYS[2], ARGV[4])
local set = ARGV[1] .. ARGV[7]
redis.call("SADD", set, ARGV[3])
if redis.call("PTTL", set) < tonumber(ARGV[5]) then
  redis.call("PEXPIRE", set, ARGV[5])
end
return 1
`

const revokeAllScript = `
local hashes = redis.call("SMEMBERS", KEYS[1])
for _, h in ipairs(hashes) do
  redis.call("DEL", ARGV[1] .. h)
end
redis.call("DEL", KEYS[1])
return #hashes
`

type RedisStore struct {
	client *redis.Client
	prefix string
	policy SessionPolicy
	now    func() time.Time

	add       *redis.Script
	revoke    *redis.Script
	rotate    *redis.Script
	revokeAll *redis.Script
}

func NewRedisStore(client *redis.Client, prefix string, policy SessionPolicy) *RedisStore {
	if prefix == "" {
		prefix = "auth:"
	}
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		policy:    policy,
		now:       time.Now,
		add:       redis.NewScript(addScript),
		revoke:    redis.NewScript(revokeScript),
		rotate:    redis.NewScript(rotateScript),
		revokeAll: redis.NewScript(revokeAllScript),
	}
}

func (s *RedisStore) tokenPrefix() string { return s.prefix + "rt:" }
func (s *RedisStore) setPrefix() string   { return s.prefix + "rtp:" }

func (s *RedisStore) tokenKey(hash string) string   { return s.tokenPrefix() + hash }
func (s *RedisStore) principalKey(id string) string { return s.setPrefix() + id }

func ttlMillis(exp, now time.Time) int64 {
	return max(exp.Sub(now).Milliseconds(), 1)
}

func (s *RedisStore) AddRefreshToken(ctx context.Context, rec Record) error {
	hash := Sha256Hex(rec.Token)
	single := "0"
	if s.policy != PolicyMulti {
		single = "1"
	}
	keys := []string{s.tokenKey(hash), s.principalKey(rec.Principal.ID)}
	_, err := s.add.Run(ctx, s.client, keys,
		single,
		s.tokenPrefix(),
		rec.ExpiresAt.UnixMilli(),
		ttlMillis(rec.ExpiresAt, s.now()),
		rec.JTI,
		rec.Principal.ID,
		rec.Principal.Role,
		rec.Principal.DisplayName,
		hash,
	).Result()
	if err != nil {
		return unavailable("add refresh token", err)
	}
	return nil
}

func (s *RedisStore) VerifyRefreshToken(ctx context.Context, token string) (tokens.Principal, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(Sha256Hex(token))).Result()
	if err != nil {
		return tokens.Principal{}, unavailable("find refresh token", err)
	}
	if len(fields) == 0 {
		return tokens.Principal{}, ErrRefreshTokenNotFound
	}
	expMs, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return tokens.Principal{}, fmt.Errorf("corrupt refresh token record: %w", err)
	}
	if expMs <= s.now().UnixMilli() {
		return tokens.Principal{}, ErrRefreshTokenExpired
	}
	return tokens.Principal{ID: fields["sub"], Role: fields["role"], DisplayName: fields["name"]}, nil
}

func (s *RedisStore) RevokeRefreshToken(ctx context.Context, token string) error {
	hash := Sha256Hex(token)
	err := s.revoke.Run(ctx, s.client, []string{s.tokenKey(hash)}, s.setPrefix(), hash).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("revoke refresh token", err)
	}
	return nil
}

func (s *RedisStore) RotateRefreshToken(ctx context.Context, oldToken string, rec Record) error {
	oldHash, newHash := Sha256Hex(oldToken), Sha256Hex(rec.Token)
	now := s.now()
	res, err := s.rotate.Run(ctx, s.client,
		[]string{s.tokenKey(oldHash), s.tokenKey(newHash)},
		s.setPrefix(),
		oldHash,
		newHash,
		rec.ExpiresAt.UnixMilli(),
		ttlMillis(rec.ExpiresAt, now),
		rec.JTI,
		rec.Principal.ID,
		rec.Principal.Role,
		rec.Principal.DisplayName,
		now.UnixMilli(),
	).Int64()
	if err != nil {
		return unavailable("rotate refresh token", err)
	}
	switch res {
	case 0:
		return ErrRefreshTokenNotFound
	case -1:
		return ErrRefreshTokenExpired
	}
	return nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, principalID string) error {
	err := s.revokeAll.Run(ctx, s.client, []string{s.principalKey(principalID)}, s.tokenPrefix()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("revoke all refresh tokens", err)
	}
	return nil
}
