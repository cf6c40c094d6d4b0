package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func hs256Manager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		Keys: &StaticKeys{
			KeyID:   "k1",
			Private: []byte("0123456789abcdef0123456789abcdef"),
		},
		Issuer: "authd-test",
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	return m
}

func TestCreateParseRoundTrip(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	token, err := m.CreateAccess("subject-1", "sess-1", 4, "a@example.com", "Alice", map[string]any{"role": "admin"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "subject-1" || claims.SessionID != "sess-1" || claims.Generation != 4 {
		t.Fatalf("identity claims mismatch: %+v", claims)
	}
	if claims.Email != "a@example.com" || claims.Name != "Alice" {
		t.Fatalf("profile claims mismatch: %+v", claims)
	}
	if role, _ := claims.Custom["role"].(string); role != "admin" {
		t.Fatalf("custom claims mismatch: %v", claims.Custom)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := hs256Manager(t, time.Nanosecond)

	token, err := m.CreateAccess("subject-1", "sess-1", 1, "", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// A well-formed signature does not save an expired token.
	if _, err := m.ParseAccess(token); !errors.Is(err, jwtlib.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	token, err := m.CreateAccess("subject-1", "sess-1", 1, "", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatalf("tampered token must not parse")
	}
}

func TestAlgorithmConfusionRejected(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	// A token signed with a different algorithm, even over the same claims,
	// must be rejected by the allow-list before signature verification.
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	foreign := jwtlib.NewWithClaims(jwtlib.SigningMethodEdDSA, jwtlib.RegisteredClaims{
		Subject:   "subject-1",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		Issuer:    "authd-test",
	})
	signed, err := foreign.SignedString(private)
	if err != nil {
		t.Fatalf("foreign sign failed: %v", err)
	}

	if _, err := m.ParseAccess(signed); err == nil {
		t.Fatalf("foreign-algorithm token must not parse")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		Keys: &StaticKeys{
			KeyID:   "ed1",
			Private: private,
			Public:  public,
		},
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	token, err := m.CreateAccess("subject-2", "sess-2", 7, "", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "subject-2" || claims.Generation != 7 {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestIssuerMismatchRejected(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		Keys: &StaticKeys{
			KeyID:   "k1",
			Private: []byte("0123456789abcdef0123456789abcdef"),
		},
		Issuer: "someone-else",
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	token, err := other.CreateAccess("subject-1", "sess-1", 1, "", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatalf("issuer mismatch must not parse")
	}
}

func TestUnknownKidRejected(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		Keys: &StaticKeys{
			KeyID:   "k9",
			Private: []byte("0123456789abcdef0123456789abcdef"),
		},
		Issuer: "authd-test",
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	token, err := other.CreateAccess("subject-1", "sess-1", 1, "", "", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatalf("unknown kid must not parse")
	}
}
