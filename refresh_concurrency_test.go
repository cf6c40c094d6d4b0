package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Sixteen goroutines race the same refresh token. The store script is
// serialized, so exactly one caller may rotate; every other caller must
// see either the replay error or the revoked-session error that the
// replay teardown leaves behind.
func TestRefreshConcurrencySingleWinner(t *testing.T) {
	engine, _, _, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()

	login, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	token := login.Tokens.RefreshToken

	const contenders = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			pair, err := engine.Refresh(ctx, token)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				if pair.RefreshToken == token {
					t.Error("rotation returned the presented token unchanged")
				}
				return
			}
			failures = append(failures, err)
		}()
	}

	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if len(failures) != contenders-1 {
		t.Fatalf("expected %d losers, got %d", contenders-1, len(failures))
	}
	for _, err := range failures {
		if !errors.Is(err, ErrReplayDetected) && !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}

	// Replay teardown revoked the session, so even the winner's fresh
	// token is dead.
	if _, err := engine.Refresh(ctx, token); err == nil {
		t.Fatal("stale token refreshed after teardown")
	}
}
