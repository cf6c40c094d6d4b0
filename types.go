package auth

import (
	"errors"
	"time"

	"github.com/mshaik15/Backend-firebase-auth/provider"
)

// TokenPair is the result of any operation that mints tokens: a signed
// short-lived access token and an opaque single-use refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult bundles the minted tokens with the provider-verified subject.
type LoginResult struct {
	Subject *provider.Subject
	Tokens  *TokenPair
}

// RegisterResult is returned by Register. Tokens is nil unless auto-login
// is enabled in the account configuration.
type RegisterResult struct {
	Subject *provider.Subject
	Tokens  *TokenPair
}

// VerifyResult is the identity extracted from a valid access token.
// Generation is the session generation the token was minted under.
type VerifyResult struct {
	SubjectID  string
	SessionID  string
	Generation uint32
	Email      string
	Name       string
	Custom     map[string]any
}

// Role returns the "role" custom claim when present.
func (v *VerifyResult) Role() (string, bool) {
	return provider.Claims(v.Custom).Role()
}

// Permissions returns the "permissions" custom claim normalized to strings.
func (v *VerifyResult) Permissions() []string {
	return provider.Claims(v.Custom).Permissions()
}

// rateLimitError carries the remaining window on a denied request. It
// matches ErrRateLimited under errors.Is so callers can branch on the
// sentinel and read the hint through [RetryAfter].
type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return ErrRateLimited.Error()
}

func (e *rateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func rateLimited(retryAfter time.Duration) error {
	return &rateLimitError{retryAfter: retryAfter}
}

// RetryAfter extracts the wait hint from a rate limit error. The second
// return is false when err is not a rate limit denial.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return rl.retryAfter, true
	}
	return 0, false
}
