// Package flows contains the orchestration for every Engine request
// operation: login, logout and per-request authentication.
//
// Each Run function takes a dependency struct of plain funcs and returns
// its result. The flows decide which metric to bump, which audit event to
// emit and which error to surface; the Engine owns every resource and
// supplies closures over it.
//
// # What this package must NOT do
//
//   - Hold state between calls.
//   - Import the root authgate package.
//   - Perform I/O except through its dependency funcs.
package flows
