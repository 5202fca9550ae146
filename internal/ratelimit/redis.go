package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key TTLs sit slightly above their window so idle clients are reclaimed
// by Redis without an explicit cleanup pass.
const (
	minuteKeyTTL = 2 * time.Minute
	hourKeyTTL   = 2 * time.Hour
	burstKeyTTL  = 30 * time.Second
)

// RedisLimiter enforces the sliding windows with per-client sorted sets
// in a shared Redis, one set per window, so enforcement is consistent
// across orchestrator instances. If Redis is unreachable at construction
// the limiter degrades to wrapping a LocalLimiter; a runtime error during
// Check fails open.
type RedisLimiter struct {
	policy    Policy
	client    *redis.Client
	keyPrefix string
	fallback  *LocalLimiter
	logger    Logger
}

// NewRedis creates a Redis-backed limiter. The connection is verified
// once; on failure the limiter falls back to in-process accounting and
// logs the degradation.
func NewRedis(client *redis.Client, policy Policy, keyPrefix string, logger Logger) *RedisLimiter {
	l := &RedisLimiter{
		policy:    policy,
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory rate limiting", "error", err)
		l.fallback = NewLocal(policy)
	}
	return l
}

// New selects the backend for a policy: Redis when enabled and a client
// is provided, in-process otherwise.
func New(policy Policy, client *redis.Client, keyPrefix string, logger Logger) Limiter {
	if client != nil {
		return NewRedis(client, policy, keyPrefix, logger)
	}
	return NewLocal(policy)
}

func (l *RedisLimiter) key(clientID, window string) string {
	return fmt.Sprintf("%s:%s:%s", l.keyPrefix, window, clientID)
}

// Check prunes and counts all three windows in one atomic pipeline, then
// tests the ceilings in fixed order. Any Redis error admits the request
// (fail open) with the error surfaced in Info.
func (l *RedisLimiter) Check(ctx context.Context, clientID string) (bool, Info) {
	if l.fallback != nil {
		return l.fallback.Check(ctx, clientID)
	}

	now := time.Now()
	nowScore := scoreOf(now)

	minuteKey := l.key(clientID, WindowMinute)
	hourKey := l.key(clientID, WindowHour)
	burstKey := l.key(clientID, WindowBurst)

	// Server-side prune-then-count as one batched operation avoids a
	// read/prune race between concurrent instances.
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, minuteKey, "0", formatScore(nowScore-minuteWindow.Seconds()))
	pipe.ZRemRangeByScore(ctx, hourKey, "0", formatScore(nowScore-hourWindow.Seconds()))
	pipe.ZRemRangeByScore(ctx, burstKey, "0", formatScore(nowScore-burstWindow.Seconds()))
	minuteCard := pipe.ZCard(ctx, minuteKey)
	hourCard := pipe.ZCard(ctx, hourKey)
	burstCard := pipe.ZCard(ctx, burstKey)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("redis rate limit check failed, admitting request", "error", err)
		return true, Info{Err: err}
	}

	minuteCount := int(minuteCard.Val())
	hourCount := int(hourCard.Val())
	burstCount := int(burstCard.Val())

	if minuteCount >= l.policy.PerMinute {
		return false, Info{
			Window:     WindowMinute,
			Limit:      l.policy.PerMinute,
			RetryAfter: l.oldestReset(ctx, minuteKey, minuteWindow, now),
		}
	}

	if hourCount >= l.policy.PerHour {
		return false, Info{
			Window:     WindowHour,
			Limit:      l.policy.PerHour,
			RetryAfter: l.oldestReset(ctx, hourKey, hourWindow, now),
		}
	}

	if burstCount >= l.policy.Burst {
		return false, Info{
			Window:     WindowBurst,
			Limit:      l.policy.Burst,
			RetryAfter: l.oldestReset(ctx, burstKey, burstWindow, now),
		}
	}

	return true, Info{
		MinuteRemaining: l.policy.PerMinute - minuteCount,
		HourRemaining:   l.policy.PerHour - hourCount,
	}
}

// Record appends the current timestamp to all three sorted sets and
// refreshes their TTLs. Failures are logged; a lost record weakens
// enforcement slightly but never rejects the caller.
func (l *RedisLimiter) Record(ctx context.Context, clientID string) {
	if l.fallback != nil {
		l.fallback.Record(ctx, clientID)
		return
	}

	nowScore := scoreOf(time.Now())
	member := fmt.Sprintf("%s:%s", formatScore(nowScore), uuid.NewString())

	pipe := l.client.TxPipeline()
	for window, ttl := range map[string]time.Duration{
		WindowMinute: minuteKeyTTL,
		WindowHour:   hourKeyTTL,
		WindowBurst:  burstKeyTTL,
	} {
		key := l.key(clientID, window)
		pipe.ZAdd(ctx, key, redis.Z{Score: nowScore, Member: member})
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("redis rate limit record failed", "error", err)
	}
}

// oldestReset computes the seconds until the oldest record in the
// violated window expires from it. If the lookup fails the full window
// length is reported.
func (l *RedisLimiter) oldestReset(ctx context.Context, key string, window time.Duration, now time.Time) int {
	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return int(window.Seconds())
	}
	age := scoreOf(now) - oldest[0].Score
	return retryAfter(window, time.Duration(age*float64(time.Second)))
}

func scoreOf(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 9, 64)
}
