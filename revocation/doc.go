// Package revocation holds the process-local list of access tokens that were
// revoked before their natural expiry.
//
// # Components
//
//   - [Cache] — lock-striped map from token to natural expiry with a
//     background sweeper owned by the cache itself.
//
// # Architecture boundaries
//
// The cache is constructed explicitly and handed to its consumers; there is
// no package-level instance. Entries are not persisted, so revocation only
// holds within the process that recorded it.
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Treat absence as proof of validity.
package revocation
