// Package observe exports engine activity as OpenTelemetry metrics.
//
// MetricsObserver is an engine.Observer; attach it with engine.WithObserver,
// usually alongside the trace recorder via engine.Observers.
package observe
