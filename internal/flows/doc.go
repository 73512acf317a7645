// Package flows contains pure-function orchestrators for the Engine's token
// operations.
//
// Each flow function (RunValidate, RunLogin, RunRefresh, RunRefreshWithAccess,
// RunLogout) accepts a typed dependency struct and returns a result carrying
// a failure kind instead of a root-level error. The Engine maps kinds onto
// its sentinels, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the codec, the revocation cache, the refresh
// store and the identity provider. They do NOT own any of these resources —
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goToken (to avoid import cycles).
//   - Perform I/O directly — all I/O is mediated through dependency functions.
package flows
