// Package userstore provides reference authgate.UserStore implementations:
// an in-memory store for development and tests, and a Postgres store over
// pgx.
//
// Both hash passwords with password.Argon2 and run a dummy verification for
// unknown usernames, so a missing account costs the same as a wrong
// password.
package userstore
