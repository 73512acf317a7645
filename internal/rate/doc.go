// Package rate throttles failed login attempts per client address.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit, keyed
// "ali:<ip>" by default. Check reads the counter without touching it.
//
// # What this package must NOT do
//
//   - Track per-account failures (identity.Lockout owns that).
//   - Be imported outside the goToken module.
package rate
