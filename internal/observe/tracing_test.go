package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/derive/internal/engine"
)

func TestSpanObserver_AddsEventsToActiveSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := tp.Tracer("test").Start(context.Background(), "compile")
	obs := NewSpanObserver()
	obs.OnEvent(ctx, engine.Event{Kind: engine.EventRecomputed, Query: "concepts", Key: "a.cue", Revision: 2})
	obs.OnEvent(ctx, engine.Event{Kind: engine.EventFailed, Query: "report", Key: "Cart", Revision: 2, Err: errors.New("boom")})
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	// RecordError adds its own "exception" event.
	var names []string
	for _, e := range spans[0].Events() {
		names = append(names, e.Name)
	}
	want := []string{"engine.recomputed", "engine.failed", "exception"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", names, want)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
}

func TestSpanObserver_NoSpanIsNoop(t *testing.T) {
	NewSpanObserver().OnEvent(context.Background(), engine.Event{Kind: engine.EventHit, Query: "index"})
}

func TestStdoutTracerProvider_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewStdoutTracerProvider(&buf)
	if err != nil {
		t.Fatalf("NewStdoutTracerProvider() failed: %v", err)
	}

	_, span := tp.Tracer(TracerName).Start(context.Background(), "workspace.compile")
	span.End()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	if !strings.Contains(buf.String(), "workspace.compile") {
		t.Errorf("expected span in output, got %q", buf.String())
	}
}
