// Package internal contains helpers that are private to authgate, currently
// session identifier generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: koanf-backed loader for the authgate binary
//   - flows: pure-function orchestrators for login, logout and authenticate
//   - logging: slog setup with trace correlation
//   - rate: Redis fixed-window counters behind login throttling
//   - server: chi router wiring for the authgate binary
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
