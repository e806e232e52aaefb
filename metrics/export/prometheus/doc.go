// Package prometheus exposes authgate engine metrics as a client_golang
// Collector.
//
// The collector reads [authgate.Engine.MetricsSnapshot] on every scrape, so
// engine counters stay lock-free and nothing is double-counted. Callers
// register it in their own registry, or mount [Exporter.Handler] which uses
// a private one.
package prometheus
