// Package jwt encodes ordered claim sets into HS256 access tokens and decodes
// them back, optionally tolerating expiry so refresh flows can read claims out
// of an expired token.
//
// # Wire format
//
// Caller claims are written first, in ClaimSet order; a type that repeats is
// written once as a JSON array. The codec then appends jti, iat, exp and,
// when configured, iss and aud. Those registered names are reserved and
// rejected by Issue.
//
// # What this package must NOT do
//
//   - Consult revocation state (the Engine does that before Decode).
//   - Accept any algorithm other than HS256.
//   - Apply leeway: expiry is compared exactly against the codec clock.
package jwt
