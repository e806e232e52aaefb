// Package authgate is a request authentication engine with two mutually
// exclusive strategies: server-held sessions in Redis (SESSION) and
// self-contained HS256 tokens (TOKEN).
//
// A deployment picks one strategy at startup through [Config.Strategy] and
// builds an [Engine] with [Builder]. The engine verifies credentials against
// an external [UserStore], issues the strategy's credential at login,
// resolves presented credentials to a [Principal] on every request and
// tears them down at logout. The middleware package adapts these calls to
// net/http.
//
// Engine methods are safe to call from multiple goroutines after Build.
//
// # Error model
//
// Every failure is one of the package sentinels, possibly wrapped. [Classify]
// maps an error to the HTTP status and {name, message} body clients see.
// Unknown users and wrong passwords are indistinguishable to the client.
//
// # What this package must NOT do
//
//   - Log or audit passwords or credential values.
//   - Read configuration from the environment in request code.
//   - Import any sub-package that re-imports authgate.
package authgate
