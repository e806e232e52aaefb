// Package audit implements async event dispatching for authentication
// outcomes.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record.
//
// This package owns buffering and sink delivery. It does not decide which
// events to emit; the engine does. Events never carry passwords or
// credential values.
package audit
