package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the provider rejects the
	// presented email/password pair. The message is intentionally generic
	// and never reveals whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned when an access or refresh token is past
	// its expiry, regardless of signature validity.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed, unsigned, or otherwise
	// unverifiable tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when a structurally valid access token
	// belongs to a subject generation below the current revocation floor.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionNotFound is returned when the refresh target session does
	// not exist or has been garbage-collected.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked is returned when the refresh target session has
	// been revoked by logout, mass revocation, or replay teardown.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrReplayDetected is returned when an already-rotated refresh token
	// is presented again. The whole session is torn down as a side effect.
	ErrReplayDetected = errors.New("refresh token replay detected")
	// ErrRateLimited is returned when a policy-class budget is exhausted.
	// Use [RetryAfter] to extract the wait hint.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable is returned for transient identity-provider
	// failures. The engine never retries; retry policy belongs to callers.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrSigningError is returned when signing material is unavailable or
	// unusable at token-issuance time.
	ErrSigningError = errors.New("signing material unavailable")
	// ErrValidationError is returned for malformed caller input.
	ErrValidationError = errors.New("invalid request")
	// ErrAccountExists is returned by Register when the provider already
	// holds a subject for the email.
	ErrAccountExists = errors.New("account already exists")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable is returned when the Redis backing store cannot
	// be reached. Fail-closed: no token is minted or rotated without it.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
