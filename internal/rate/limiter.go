package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Class names a rate limit policy class. Endpoints are assigned a class by
// the HTTP layer; the limiter only knows budgets per class.
type Class string

const (
	// ClassGlobal is the broad per-client budget applied to every endpoint.
	ClassGlobal Class = "global"
	// ClassAuth is the tight budget for credential-bearing endpoints.
	ClassAuth Class = "auth"
)

// Policy is a fixed-window budget: at most Max hits per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// Config holds the per-class policies and the trusted-key allow-list.
type Config struct {
	Policies map[Class]Policy
	// TrustedKeys bypass limiting entirely (health probes, internal callers).
	TrustedKeys []string
}

// Limiter enforces fixed-window rate limits per (class, key) pair using
// Redis counters. A failed-open stance is deliberately NOT taken: when
// Redis is down the caller gets ErrRedisUnavailable and must decide.
type Limiter struct {
	redis    redis.UniversalClient
	policies map[Class]Policy
	trusted  map[string]struct{}
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	trusted := make(map[string]struct{}, len(cfg.TrustedKeys))
	for _, k := range cfg.TrustedKeys {
		trusted[k] = struct{}{}
	}
	policies := make(map[Class]Policy, len(cfg.Policies))
	for class, p := range cfg.Policies {
		policies[class] = p
	}
	return &Limiter{
		redis:    redisClient,
		policies: policies,
		trusted:  trusted,
	}
}

// Trusted reports whether the key is on the bypass allow-list.
func (l *Limiter) Trusted(key string) bool {
	_, ok := l.trusted[key]
	return ok
}

// Check consumes one hit from the (class, key) budget. On denial it returns
// ErrRateLimited together with the remaining window as retry-after; callers
// surface that to the client. Trusted keys always pass.
func (l *Limiter) Check(ctx context.Context, class Class, key string) (time.Duration, error) {
	if l.Trusted(key) {
		return 0, nil
	}

	policy, ok := l.policies[class]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	if policy.Max <= 0 {
		return 0, nil
	}

	counterKey := counterKey(class, key)
	count, err := l.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, counterKey, policy.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(policy.Max) {
		retryAfter, err := l.retryAfter(ctx, counterKey, policy.Window)
		if err != nil {
			return 0, err
		}
		return retryAfter, ErrRateLimited
	}

	return 0, nil
}

// Remaining returns how many hits are left in the current window without
// consuming one. Missing counters mean a full budget.
func (l *Limiter) Remaining(ctx context.Context, class Class, key string) (int, error) {
	policy, ok := l.policies[class]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}

	count, err := l.redis.Get(ctx, counterKey(class, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return policy.Max, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	remaining := int64(policy.Max) - count
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining), nil
}

// Reset clears the counter for a (class, key) pair. Used after events that
// should forgive prior attempts, like a successful credential change.
func (l *Limiter) Reset(ctx context.Context, class Class, key string) error {
	if err := l.redis.Del(ctx, counterKey(class, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) retryAfter(ctx context.Context, key string, window time.Duration) (time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		// Counter lost its TTL somehow; the window length is the honest bound.
		return window, nil
	}
	return ttl, nil
}

func counterKey(class Class, key string) string {
	return "rl:" + string(class) + ":" + key
}
