package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const redisKeyPrefix = "payshield:challenge:"

// verifyScript runs lookup, expiry check, comparison, and delete atomically on the Redis server.
// ARGV[1] is the hash of the supplied code, ARGV[2] is now in epoch ms.
// Reply: {status} or {status, amount, issued_at_ms}; status 0=not found, 1=expired, 2=mismatch, 3=verified.
var verifyScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at', 'amount', 'issued_at')
if not v[1] then
  return {0}
end
if tonumber(ARGV[2]) > tonumber(v[2]) then
  redis.call('DEL', KEYS[1])
  return {1, v[3], v[4]}
end
if v[1] ~= ARGV[1] then
  return {2, v[3], v[4]}
end
redis.call('DEL', KEYS[1])
return {3, v[3], v[4]}
`)

// RedisStore is a Store shared across processes through Redis.
type RedisStore struct {
	rdb  redis.UniversalClient
	ttl  time.Duration
	nowF func() time.Time
}

// NewRedisStore returns a Redis-backed challenge store with the given TTL (DefaultChallengeTTL if <= 0).
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &RedisStore{
		rdb:  rdb,
		ttl:  ttl,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func challengeKey(orderID string) string {
	return redisKeyPrefix + orderID
}

// Issue writes the challenge hash and its expiry in one MULTI/EXEC so concurrent issues for the same
// order never interleave into a half-written record.
func (s *RedisStore) Issue(ctx context.Context, orderID string, amount decimal.Decimal) (string, time.Time, error) {
	code, err := GenerateOTP()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.nowF()
	expiresAt := now.Add(s.ttl)
	key := challengeKey(orderID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", HashOTP(code),
			"amount", amount.String(),
			"issued_at", strconv.FormatInt(now.UnixMilli(), 10),
			"expires_at", strconv.FormatInt(expiresAt.UnixMilli(), 10),
		)
		pipe.PExpire(ctx, key, s.ttl+ExpiredGrace)
		return nil
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("mfa: redis issue: %w", err)
	}
	return code, expiresAt, nil
}

// Verify runs verifyScript for orderID.
func (s *RedisStore) Verify(ctx context.Context, orderID, code string) (Result, error) {
	reply, err := verifyScript.Run(ctx, s.rdb, []string{challengeKey(orderID)},
		HashOTP(code), s.nowF().UnixMilli()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("mfa: redis verify: %w", err)
	}
	return parseVerifyReply(reply)
}

func parseVerifyReply(reply []interface{}) (Result, error) {
	if len(reply) == 0 {
		return Result{}, errors.New("mfa: empty verify reply")
	}
	status, ok := reply[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("mfa: unexpected verify status %T", reply[0])
	}
	var res Result
	switch status {
	case 0:
		return Result{Outcome: OutcomeNotFound}, nil
	case 1:
		res.Outcome = OutcomeExpired
	case 2:
		res.Outcome = OutcomeMismatch
	case 3:
		res.Outcome = OutcomeVerified
	default:
		return Result{}, fmt.Errorf("mfa: unexpected verify status %d", status)
	}
	if len(reply) >= 2 {
		if s, ok := reply[1].(string); ok && s != "" {
			amt, err := decimal.NewFromString(s)
			if err != nil {
				return Result{}, fmt.Errorf("mfa: bad stored amount: %w", err)
			}
			res.Amount = amt
		}
	}
	if len(reply) >= 3 {
		if s, ok := reply[2].(string); ok && s != "" {
			ms, err := strconv.ParseInt(s, 10, 64)
			if err == nil {
				res.IssuedAt = time.UnixMilli(ms).UTC()
			}
		}
	}
	return res, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
