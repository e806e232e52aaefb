// Package otel publishes authgate engine metrics through an OpenTelemetry
// Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one gauge per latency bucket, all fed from a single callback that reads
// the engine snapshot at collection time. The caller owns the
// MeterProvider.
package otel
