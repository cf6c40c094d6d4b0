// Package session implements the Redis-backed session store: binary session
// records, atomic refresh rotation via a compare-and-increment Lua script,
// and the per-subject generation floor that makes mass revocation O(1).
package session

// Session is the server-side record behind one refresh-token chain. It is
// created at login, its Generation advances by exactly one per successful
// rotation, and Revoked flips once and never clears.
type Session struct {
	SessionID string
	SubjectID string

	// Generation counts successful rotations; a presented refresh token
	// is valid only while its embedded generation matches.
	Generation uint32
	// SubjectEpoch is the subject revocation floor captured at login.
	// The session dies when the floor moves past it.
	SubjectEpoch uint64
	Revoked      bool
	// RefreshHash is sha256 of the single outstanding refresh secret.
	// The secret itself is never stored.
	RefreshHash [32]byte

	CreatedAt     int64
	LastRotatedAt int64
	ExpiresAt     int64
}
