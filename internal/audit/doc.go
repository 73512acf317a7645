// Package audit relays token lifecycle events to a sink off the request path.
//
// # Components
//
//   - [Sink] — event consumer (no-op, channel, JSON lines, slog).
//   - [Dispatcher] — buffered relay with drop-if-full or block-if-full modes.
//   - [Event] — record of one login, refresh, validation rejection or logout.
//
// # Architecture boundaries
//
// The package does not decide which events exist; the Engine does.
//
// # What this package must NOT do
//
//   - Import goToken or sibling internal packages.
//   - Carry token strings or passwords in events.
package audit
