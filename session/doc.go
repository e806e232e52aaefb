// Package session provides Redis-backed session persistence for the SESSION
// strategy and a compact binary encoding for stored sessions.
//
// # Binary encoding
//
// A stored session is a version byte followed by the length-prefixed
// principal id and the big-endian creation and expiry timestamps. Decode
// rejects versions it does not know.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does not
// resolve principals or enforce authentication policy; the engine does.
package session
