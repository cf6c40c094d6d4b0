package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "sa")

	return store, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func hashByte(b byte) [32]byte {
	var out [32]byte
	for i := 0; i < len(out); i++ {
		out[i] = b
	}
	return out
}

func makeSession(sessionID, subjectID string, epoch uint64, refreshHash [32]byte) *Session {
	now := time.Now()
	return &Session{
		SessionID:     sessionID,
		SubjectID:     subjectID,
		Generation:    1,
		SubjectEpoch:  epoch,
		RefreshHash:   refreshHash,
		CreatedAt:     now.Unix(),
		LastRotatedAt: now.Unix(),
		ExpiresAt:     now.Add(time.Hour).Unix(),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	want := makeSession("sess-1", "subject-1", 3, hashByte(0xAA))
	if err := store.Save(ctx, want, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SubjectID != want.SubjectID {
		t.Fatalf("subject mismatch: got %q want %q", got.SubjectID, want.SubjectID)
	}
	if got.Generation != 1 || got.SubjectEpoch != 3 || got.Revoked {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if got.RefreshHash != want.RefreshHash {
		t.Fatalf("refresh hash mismatch")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestGetLifetimeExpiredDeletes(t *testing.T) {
	store, mr, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	sess := makeSession("sess-exp", "subject-1", 0, hashByte(0x01))
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := store.Get(ctx, "sess-exp"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for lifetime-expired session, got %v", err)
	}
	if mr.Exists("sa:s:sess-exp") {
		t.Fatalf("expired record should have been deleted")
	}
}

func TestRotateAdvancesGeneration(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	oldHash := hashByte(0x11)
	newHash := hashByte(0x22)
	sess := makeSession("sess-rot", "subject-1", 0, oldHash)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	rotated, err := store.Rotate(ctx, "sess-rot", 1, oldHash, newHash)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rotated.Generation != 2 {
		t.Fatalf("expected generation 2, got %d", rotated.Generation)
	}
	if rotated.RefreshHash != newHash {
		t.Fatalf("rotation did not swap the refresh hash")
	}
	if rotated.SubjectID != "subject-1" || rotated.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("rotation mutated immutable fields: %+v", rotated)
	}

	stored, err := store.Get(ctx, "sess-rot")
	if err != nil {
		t.Fatalf("get after rotate failed: %v", err)
	}
	if stored.Generation != 2 || stored.RefreshHash != newHash {
		t.Fatalf("stored record not updated: %+v", stored)
	}
}

func TestRotateMismatchRevokesSession(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	good := hashByte(0x33)
	sess := makeSession("sess-replay", "subject-1", 0, good)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := store.Rotate(ctx, "sess-replay", 1, hashByte(0x44), hashByte(0x55)); !errors.Is(err, ErrRotateMismatch) {
		t.Fatalf("expected ErrRotateMismatch, got %v", err)
	}

	// The session is torn down; even the correct hash no longer rotates.
	if _, err := store.Rotate(ctx, "sess-replay", 1, good, hashByte(0x66)); !errors.Is(err, ErrRotateSessionRevoked) {
		t.Fatalf("expected ErrRotateSessionRevoked after teardown, got %v", err)
	}

	stored, err := store.Get(ctx, "sess-replay")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !stored.Revoked {
		t.Fatalf("session should carry the revoked flag")
	}
}

func TestRotateStaleGenerationRevokes(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	h1 := hashByte(0x01)
	h2 := hashByte(0x02)
	sess := makeSession("sess-gen", "subject-1", 0, h1)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := store.Rotate(ctx, "sess-gen", 1, h1, h2); err != nil {
		t.Fatalf("first rotate failed: %v", err)
	}

	// Replaying generation 1 after a successful rotation is theft.
	if _, err := store.Rotate(ctx, "sess-gen", 1, h1, hashByte(0x03)); !errors.Is(err, ErrRotateMismatch) {
		t.Fatalf("expected ErrRotateMismatch for stale generation, got %v", err)
	}
}

func TestRotateNotFound(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()

	_, err := store.Rotate(context.Background(), "ghost", 1, hashByte(0x01), hashByte(0x02))
	if !errors.Is(err, ErrRotateSessionNotFound) {
		t.Fatalf("expected ErrRotateSessionNotFound, got %v", err)
	}
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("not-found should also match redis.Nil, got %v", err)
	}
}

func TestRotateLifetimeExpired(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	h := hashByte(0x07)
	sess := makeSession("sess-dead", "subject-1", 0, h)
	sess.ExpiresAt = time.Now().Add(-time.Second).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	_, err := store.Rotate(ctx, "sess-dead", 1, h, hashByte(0x08))
	if !errors.Is(err, ErrRotateSessionExpired) {
		t.Fatalf("expected ErrRotateSessionExpired, got %v", err)
	}
}

func TestRotateBelowSubjectFloorRevokes(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	h := hashByte(0x09)
	sess := makeSession("sess-floor", "subject-floor", 0, h)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	floor, err := store.RevokeAllForSubject(ctx, "subject-floor", time.Hour)
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if floor != 1 {
		t.Fatalf("expected floor 1, got %d", floor)
	}

	if _, err := store.Rotate(ctx, "sess-floor", 1, h, hashByte(0x0A)); !errors.Is(err, ErrRotateSessionRevoked) {
		t.Fatalf("expected ErrRotateSessionRevoked below floor, got %v", err)
	}
}

func TestRevokeAllDoesNotAffectLaterSessions(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if _, err := store.RevokeAllForSubject(ctx, "subject-x", time.Hour); err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	floor, err := store.SubjectFloor(ctx, "subject-x")
	if err != nil {
		t.Fatalf("subject floor failed: %v", err)
	}

	// A session created after the bump captures the new floor and rotates.
	h := hashByte(0x0B)
	sess := makeSession("sess-after", "subject-x", floor, h)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := store.Rotate(ctx, "sess-after", 1, h, hashByte(0x0C)); err != nil {
		t.Fatalf("post-revocation session should rotate: %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	store, mr, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	sess := makeSession("sess-rev", "subject-1", 0, hashByte(0x0D))
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := store.Revoke(ctx, "sess-rev"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, "sess-rev"); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, "ghost"); err != nil {
		t.Fatalf("revoking a missing session should be a no-op: %v", err)
	}

	stored, err := store.Get(ctx, "sess-rev")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !stored.Revoked {
		t.Fatalf("revoked flag not set")
	}
	if ttl := mr.TTL("sa:s:sess-rev"); ttl <= 0 {
		t.Fatalf("revocation must preserve the record TTL, got %v", ttl)
	}
}

func TestSubjectFloorMissingIsZero(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()

	floor, err := store.SubjectFloor(context.Background(), "never-revoked")
	if err != nil {
		t.Fatalf("subject floor failed: %v", err)
	}
	if floor != 0 {
		t.Fatalf("expected floor 0, got %d", floor)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	presented := hashByte(0x10)
	sess := makeSession("sess-race", "subject-1", 0, presented)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		next := hashByte(byte(0x80 + i))
		go func() {
			defer wg.Done()
			_, err := store.Rotate(ctx, "sess-race", 1, presented, next)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRotateMismatch) || errors.Is(err, ErrRotateSessionRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected rotation error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d losers, got %d", n-1, fail)
	}
}
