// Package middleware exposes net/http middleware that authenticates requests
// with a goToken.Engine.
//
// # Guards
//
//   - [Guard] — rejects missing, invalid, expired or revoked bearer tokens with 401.
//   - [WithRenewal] — sliding renewal: accepted requests receive a fresh token
//     in the Authorization response header.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// token logic itself — all decisions are delegated to Engine.ValidateAccessToken.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Reveal why a token was rejected in the response body.
package middleware
