// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Redis implementations of the short-lived credential repositories.
//
// One-time login codes and reset tokens live in Redis rather than Postgres:
// they are ephemeral, self-expiring, and their consume operations must be
// atomic under concurrent submissions.

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acejobs/portal/internal/platform/constants"
)

// # One-Time Code Repository

// otpKeyGrace keeps the Redis key alive past the challenge's own expiry so
// an expired challenge is distinguishable from no challenge at all.
const otpKeyGrace = 10 * time.Minute

// redeemScript atomically classifies and consumes a code submission.
//
// KEYS[1] = challenge key, ARGV[1] = submitted code, ARGV[2] = now (unix).
// Returns 0 = no challenge, 1 = consumed, 2 = expired, 3 = mismatch.
// A mismatch leaves the challenge in place; expiry deletes it.
var redeemScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local challenge = cjson.decode(raw)
if tonumber(ARGV[2]) > challenge.expires_unix then
  redis.call('DEL', KEYS[1])
  return 2
end
if challenge.code ~= ARGV[1] then
  return 3
end
redis.call('DEL', KEYS[1])
return 1
`)

// redisChallenge is the wire form the Lua script reads. It carries the expiry
// as a unix timestamp so the script can compare without date parsing.
type redisChallenge struct {
	Code        string `json:"code"`
	IssuedUnix  int64  `json:"issued_unix"`
	ExpiresUnix int64  `json:"expires_unix"`
}

// RedisOtpRepository implements the OtpRepository interface using go-redis.
type RedisOtpRepository struct {
	client *redis.Client
}

// NewOtpRepository creates a new Redis implementation of the OtpRepository.
func NewOtpRepository(client *redis.Client) *RedisOtpRepository {
	return &RedisOtpRepository{client: client}
}

/*
Issue stores a fresh challenge for the member. A plain SET replaces any
outstanding challenge, which is exactly the supersession rule: only the most
recently issued code is redeemable.

Parameters:
  - context: context.Context
  - memberID: string
  - code: string
  - expiresAt: time.Time

Returns:
  - error: Storage failures
*/
func (repository *RedisOtpRepository) Issue(context context.Context, memberID, code string, expiresAt time.Time) error {
	payload, err := json.Marshal(redisChallenge{
		Code:        code,
		IssuedUnix:  time.Now().Unix(),
		ExpiresUnix: expiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("redis_otp_repo_marshal_failed: %w", err)
	}

	key := constants.RedisPrefixOtpChallenge + memberID
	ttl := time.Until(expiresAt) + otpKeyGrace

	if err := repository.client.Set(context, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_otp_repo_set_failed: %w", err)
	}
	return nil
}

/*
Redeem runs the consume script, so check-and-delete is a single atomic step
on the Redis side. Two devices racing the same correct code see exactly one
success.

Parameters:
  - context: context.Context
  - memberID: string
  - code: string

Returns:
  - RedeemResult: Outcome classification
  - error: Storage failures
*/
func (repository *RedisOtpRepository) Redeem(context context.Context, memberID, code string) (RedeemResult, error) {
	key := constants.RedisPrefixOtpChallenge + memberID

	outcome, err := redeemScript.Run(context, repository.client,
		[]string{key}, code, time.Now().Unix()).Int()
	if err != nil {
		return RedeemNone, fmt.Errorf("redis_otp_repo_redeem_failed: %w", err)
	}

	switch outcome {
	case 1:
		return RedeemOK, nil
	case 2:
		return RedeemExpired, nil
	case 3:
		return RedeemMismatch, nil
	default:
		return RedeemNone, nil
	}
}

// # Reset Token Repository

// RedisResetTokenRepository implements the ResetTokenRepository interface
// using go-redis.
type RedisResetTokenRepository struct {
	client *redis.Client
}

// NewResetTokenRepository creates a new Redis implementation of the
// ResetTokenRepository.
func NewResetTokenRepository(client *redis.Client) *RedisResetTokenRepository {
	return &RedisResetTokenRepository{client: client}
}

/*
Store saves a reset token digest mapped to the member. The key's TTL is the
token's entire validity; absence at redeem time means unknown or expired.

Parameters:
  - context: context.Context
  - tokenHash: string
  - memberID: string
  - expiresAt: time.Time

Returns:
  - error: Storage failures
*/
func (repository *RedisResetTokenRepository) Store(context context.Context, tokenHash, memberID string, expiresAt time.Time) error {
	key := constants.RedisPrefixResetToken + tokenHash

	if err := repository.client.Set(context, key, memberID, time.Until(expiresAt)).Err(); err != nil {
		return fmt.Errorf("redis_reset_repo_set_failed: %w", err)
	}
	return nil
}

/*
Redeem consumes the token via GETDEL so a reset link works exactly once.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - string: Member ID, empty when the token is unknown or expired
  - error: Storage failures
*/
func (repository *RedisResetTokenRepository) Redeem(context context.Context, tokenHash string) (string, error) {
	key := constants.RedisPrefixResetToken + tokenHash

	memberID, err := repository.client.GetDel(context, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis_reset_repo_redeem_failed: %w", err)
	}
	return memberID, nil
}
