package auth

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mshaik15/Backend-firebase-auth/jwt"
	"github.com/mshaik15/Backend-firebase-auth/provider"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Keys = &jwt.StaticKeys{
		KeyID:   "test",
		Private: []byte("0123456789abcdef0123456789abcdef"),
	}
	cfg.JWT.Issuer = "authd-test"
	cfg.JWT.AccessTTL = time.Minute
	cfg.Session.RefreshTTL = time.Hour
	cfg.RateLimit.Auth = RatePolicy{Max: 100, Window: time.Minute}
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *provider.Fake, *miniredis.Miniredis, func()) {
	t.Helper()
	return buildTestEngine(t, mutate, nil)
}

func newTestEngineWithSink(t *testing.T, sink AuditSink) (*Engine, *provider.Fake, *miniredis.Miniredis, func()) {
	t.Helper()
	return buildTestEngine(t, func(cfg *Config) {
		cfg.Audit = AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}
	}, sink)
}

func buildTestEngine(t *testing.T, mutate func(*Config), sink AuditSink) (*Engine, *provider.Fake, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	idp := provider.NewFake()
	idp.Seed("alice@example.com", "correct-password-123", "Alice", provider.Claims{"role": "admin"})

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(idp)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	return engine, idp, mr, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}
