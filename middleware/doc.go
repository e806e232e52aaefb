// Package middleware adapts an authgate Engine to net/http.
//
// # Handlers
//
//   - [Guard]: admits or rejects each request before the wrapped handler runs.
//   - [LoginHandler]: decodes {username, password}, sets the credential
//     cookie and writes {"userDto": ...}.
//   - [LogoutHandler]: tears down the credential and always clears the
//     cookie.
//
// Credentials are read through an [Extractor]; the default reads the
// strategy's cookie.
//
// # What this package must NOT do
//
//   - Parse tokens or touch Redis directly.
//   - Put anything but the {name, message} body on a failed response.
package middleware
