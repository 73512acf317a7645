// Package identity authenticates user credentials and resolves the claims
// carried by their access tokens.
//
// # Components
//
//   - [Authenticator] implements [Provider] and [ClaimsResolver] over a
//     [Users] repository, a [Lockout] and a password verifier.
//   - [MemoryUsers] and [PostgresUsers] look accounts up by name, e-mail or id.
//   - [MemoryLockout] and [RedisLockout] count consecutive failures and lock
//     an account for a fixed duration once the threshold is reached.
//
// # What this package must NOT do
//
//   - Issue or verify tokens.
//   - Reveal through errors whether an account exists; that is reported
//     through [Outcome.Status] only.
package identity
