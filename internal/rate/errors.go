package rate

import "errors"

var (
	// ErrRateLimited signals that the identity exhausted its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrUnknownClass signals a policy class the limiter was not configured with.
	ErrUnknownClass = errors.New("unknown rate limit class")
)
