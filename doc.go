// Package auth implements the session-token lifecycle for a service that
// fronts an external identity provider: short-lived JWT access tokens,
// rotating single-use opaque refresh tokens, Redis-backed session state,
// per-subject mass revocation, and policy-class rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// auth is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (TokenPair, Claims, MetricsSnapshot). Credential verification
// and account records belong to the external identity provider behind
// [provider.Client]; this package never stores passwords or profiles. All
// internal coordination (token codecs, session encoding, rate limiting,
// audit dispatch) lives under internal/ or leaf packages and is never
// re-exported.
//
// # Performance contract
//
// Verify is the hot path. By default it completes without Redis round-trips;
// enabling Session.EnableRevocationCheck adds exactly one Redis read. Login
// and Refresh are allowed one provider call and a bounded number of Redis
// round-trips per call.
package auth
