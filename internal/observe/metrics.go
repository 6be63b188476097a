package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/derive/internal/engine"
)

// Metric names.
const (
	QueryEventsMetric = "derive.query.events"
	InputWritesMetric = "derive.input.writes"
	FailuresMetric    = "derive.query.failures"
)

// MetricsObserver counts engine events.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: never panics; instrument errors surface from the constructor only.
type MetricsObserver struct {
	events   metric.Int64Counter
	writes   metric.Int64Counter
	failures metric.Int64Counter
}

// NewMetricsObserver creates the instruments on meter.
func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	events, err := meter.Int64Counter(
		QueryEventsMetric,
		metric.WithDescription("Query cache events by query and kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter(
		InputWritesMetric,
		metric.WithDescription("Input writes, each allocating a revision"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		FailuresMetric,
		metric.WithDescription("Compute functions that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsObserver{events: events, writes: writes, failures: failures}, nil
}

// OnEvent implements engine.Observer.
func (m *MetricsObserver) OnEvent(ctx context.Context, ev engine.Event) {
	query := attribute.String("query", ev.Query)
	m.events.Add(ctx, 1, metric.WithAttributes(query, attribute.String("kind", string(ev.Kind))))

	switch ev.Kind {
	case engine.EventSet, engine.EventRemove:
		m.writes.Add(ctx, 1, metric.WithAttributes(query))
	case engine.EventFailed:
		m.failures.Add(ctx, 1, metric.WithAttributes(query))
	}
}
