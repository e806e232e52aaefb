// Package rate counts failed logins in Redis and reports when an
// identifier or client IP has used up its attempts for the current window.
//
// # Window semantics
//
// Fixed-window counters: INCR plus EXPIRE on the first hit. Keys live under
// the configured prefix:
//   - <prefix>:u:<identifier>  per normalized identifier
//   - <prefix>:i:<ip>          per client IP, when PerIP is set
//
// Counters only move on failures. A successful login clears the
// identifier's counter but leaves the IP counter alone.
package rate
