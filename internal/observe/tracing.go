package observe

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/derive/internal/engine"
)

// TracerName is the instrumentation scope used for workspace spans.
const TracerName = MeterName

// NewStdoutTracerProvider creates a tracer provider that writes finished
// spans to w as JSON. Shut it down to flush.
func NewStdoutTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}

// SpanObserver attaches engine events to the span active in the event's
// context. Events outside a recording span are dropped.
type SpanObserver struct{}

// NewSpanObserver returns a SpanObserver.
func NewSpanObserver() SpanObserver {
	return SpanObserver{}
}

// OnEvent implements engine.Observer.
func (SpanObserver) OnEvent(ctx context.Context, ev engine.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("query", ev.Query),
		attribute.Int64("revision", int64(ev.Revision)),
	}
	if ev.Key != "" {
		attrs = append(attrs, attribute.String("key", ev.Key))
	}
	span.AddEvent("engine."+string(ev.Kind), trace.WithAttributes(attrs...))

	if ev.Kind == engine.EventFailed && ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
}
