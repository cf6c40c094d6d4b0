// Package rate provides the Redis-backed fixed-window rate limiter behind
// the authentication engine's policy classes.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key shape:
//
//	rl:<class>:<key>
//
// where class is a policy class name ("global", "auth") and key is the
// caller-supplied identity (an IP, a username, a session id).
//
// # What this package must NOT do
//
//   - Decide which class applies to which endpoint (the HTTP layer does).
//   - Be imported outside this module.
package rate
