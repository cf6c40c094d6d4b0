package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, cfg), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func authOnlyConfig(max int, window time.Duration) Config {
	return Config{
		Policies: map[Class]Policy{
			ClassAuth: {Max: max, Window: window},
		},
	}
}

func TestCheckWithinBudget(t *testing.T) {
	limiter, _, done := newTestLimiter(t, authOnlyConfig(3, time.Minute))
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, ClassAuth, "alice"); err != nil {
			t.Fatalf("hit %d should pass: %v", i+1, err)
		}
	}
}

func TestCheckDeniesOverBudget(t *testing.T) {
	limiter, _, done := newTestLimiter(t, authOnlyConfig(2, time.Minute))
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(ctx, ClassAuth, "bob"); err != nil {
			t.Fatalf("hit %d should pass: %v", i+1, err)
		}
	}

	retryAfter, err := limiter.Check(ctx, ClassAuth, "bob")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retry-after out of range: %v", retryAfter)
	}
}

func TestCheckWindowElapses(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, authOnlyConfig(1, time.Minute))
	defer done()
	ctx := context.Background()

	if _, err := limiter.Check(ctx, ClassAuth, "carol"); err != nil {
		t.Fatalf("first hit should pass: %v", err)
	}
	if _, err := limiter.Check(ctx, ClassAuth, "carol"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected denial inside the window, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if _, err := limiter.Check(ctx, ClassAuth, "carol"); err != nil {
		t.Fatalf("budget should reset after the window: %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _, done := newTestLimiter(t, authOnlyConfig(1, time.Minute))
	defer done()
	ctx := context.Background()

	if _, err := limiter.Check(ctx, ClassAuth, "dave"); err != nil {
		t.Fatalf("dave's first hit should pass: %v", err)
	}
	if _, err := limiter.Check(ctx, ClassAuth, "erin"); err != nil {
		t.Fatalf("erin must not share dave's budget: %v", err)
	}
}

func TestTrustedKeyBypasses(t *testing.T) {
	cfg := authOnlyConfig(1, time.Minute)
	cfg.TrustedKeys = []string{"internal-probe"}
	limiter, _, done := newTestLimiter(t, cfg)
	defer done()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := limiter.Check(ctx, ClassAuth, "internal-probe"); err != nil {
			t.Fatalf("trusted key must never be limited: %v", err)
		}
	}
	if !limiter.Trusted("internal-probe") {
		t.Fatalf("allow-list lookup failed")
	}
	if limiter.Trusted("stranger") {
		t.Fatalf("unlisted key reported trusted")
	}
}

func TestUnknownClass(t *testing.T) {
	limiter, _, done := newTestLimiter(t, authOnlyConfig(1, time.Minute))
	defer done()

	if _, err := limiter.Check(context.Background(), Class("bogus"), "x"); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestRemainingAndReset(t *testing.T) {
	limiter, _, done := newTestLimiter(t, authOnlyConfig(3, time.Minute))
	defer done()
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, ClassAuth, "frank")
	if err != nil || remaining != 3 {
		t.Fatalf("fresh key should have the full budget: %d, %v", remaining, err)
	}

	if _, err := limiter.Check(ctx, ClassAuth, "frank"); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	remaining, err = limiter.Remaining(ctx, ClassAuth, "frank")
	if err != nil || remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d, %v", remaining, err)
	}

	if err := limiter.Reset(ctx, ClassAuth, "frank"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	remaining, err = limiter.Remaining(ctx, ClassAuth, "frank")
	if err != nil || remaining != 3 {
		t.Fatalf("reset should restore the budget: %d, %v", remaining, err)
	}
}
