// Package middleware exposes HTTP adapters over the engine: a bearer-token
// guard that injects the verified identity into the request context, and a
// rate limit wrapper that shares the engine's Redis budgets.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It does NOT
// parse tokens or touch Redis itself; all decisions come from the engine.
package middleware
