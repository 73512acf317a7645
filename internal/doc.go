// Package internal groups helpers that are private to goToken.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - config — server configuration loading (viper + validator)
//   - flows — pure-function flow orchestrators for login, refresh, validate and logout
//   - httpapi — chi HTTP surface used by cmd/gotoken-server
//   - rate — Redis-backed per-address login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public goToken API.
//   - Be imported by any package outside the goToken module.
package internal
