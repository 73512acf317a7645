// Package refresh issues and rotates opaque single-use refresh tokens.
//
// # Token format
//
// A refresh token value is a random UUID string. Values are never persisted:
// repositories key records by the hex SHA-256 of the value (see [HashValue]).
//
// # Components
//
//   - [Store] issues, looks up, invalidates and rotates tokens.
//   - [MemoryRepository] keeps records in process memory.
//   - [RedisRepository] keeps records as expiring Redis hashes.
//   - [PostgresRepository] keeps records in the refresh_tokens table.
//
// # Architecture boundaries
//
// Rotation consumes the old record through [Repository.TakeByHash], which
// every repository implements as a single atomic step. Two concurrent
// rotations of the same value therefore yield exactly one new token.
//
// # What this package must NOT do
//
//   - Parse or issue access tokens.
//   - Store plaintext token values.
//   - Return a token for an expired record.
package refresh
