// Package goToken issues, validates, revokes and rotates JWT credentials:
// HS256 access tokens carrying an ordered claim set, and opaque single-use
// refresh tokens persisted in a pluggable repository.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (AccessToken, LoginResult, MetricsSnapshot). Orchestration lives in
// internal/flows; signing in jwt; revocation in revocation; persistence in
// refresh; credential checks in identity.
//
// # What this package must NOT do
//
//   - Share revocation state across processes (the cache is process-local).
//   - Retry failed store or identity calls.
//   - Panic on malformed tokens; every failure is a typed error.
//
// # Performance contract
//
// ValidateAccessToken is the hot path. It takes one read lock on one cache shard and
// verifies one HMAC; it never touches the refresh repository.
package goToken
