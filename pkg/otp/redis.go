package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	fieldHash      = "hash"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// consumeScript deletes the challenge only while it still holds the hash the
// caller verified, so a code is accepted at most once and a re-issued code is
// never removed by a stale reader.
var consumeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "hash") ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`)

// missScript counts a wrong guess against the challenge the caller read. A
// consumed or replaced challenge is left alone; the key is never recreated.
var missScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "hash") ~= ARGV[1] then
  return -1
end
local attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if attempts >= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
end
return attempts
`)

// RedisStore keeps bcrypt-hashed codes in Redis hashes so that several API
// replicas share them. Redis key expiry replaces the sweeper.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	opts      Options
	cost      int
}

// NewRedisStore builds a Redis-backed code store.
func NewRedisStore(client *redis.Client, prefix string, opts Options) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("otp redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "studygroup:otp"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		opts:      opts.withDefaults(),
		cost:      bcrypt.DefaultCost,
	}, nil
}

// Issue stores a new hashed code under the phone key.
func (s *RedisStore) Issue(ctx context.Context, phone string) (string, time.Time, error) {
	code, err := GenerateNumericCode(s.opts.CodeLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("hash code: %w", err)
	}
	expiresAt := time.Now().UTC().Add(s.opts.TTL)
	key := s.key(phone)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fieldHash, string(hash), fieldExpiresAt, expiresAt.UnixMilli(), fieldAttempts, 0)
	pipe.PExpire(ctx, key, s.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", time.Time{}, fmt.Errorf("store code: %w", err)
	}
	return code, expiresAt, nil
}

// Consume verifies the code and deletes it on success or after too many misses.
func (s *RedisStore) Consume(ctx context.Context, phone, code string) error {
	key := s.key(phone)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	hash := fields[fieldHash]
	if hash == "" {
		return ErrCodeInvalid
	}

	if expiresMs, parseErr := strconv.ParseInt(fields[fieldExpiresAt], 10, 64); parseErr == nil && time.Now().UTC().UnixMilli() > expiresMs {
		_ = consumeScript.Run(ctx, s.client, []string{key}, hash).Err()
		return ErrCodeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		if err := s.recordMiss(ctx, key, hash); err != nil {
			return err
		}
		return ErrCodeInvalid
	}

	consumed, err := consumeScript.Run(ctx, s.client, []string{key}, hash).Int()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if consumed == 0 {
		// consumed or replaced concurrently
		return ErrCodeInvalid
	}
	return nil
}

func (s *RedisStore) recordMiss(ctx context.Context, key, hash string) error {
	if err := missScript.Run(ctx, s.client, []string{key}, hash, s.opts.MaxAttempts).Err(); err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	return nil
}

func (s *RedisStore) key(phone string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, phone)
}
