package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/testutil"
)

func TestObservers_FanOut(t *testing.T) {
	a := testutil.NewRecorder()
	b := testutil.NewRecorder()

	obs := engine.Observers(a, nil, engine.Observers(b))
	obs.OnEvent(context.Background(), engine.Event{Kind: engine.EventSet, Query: "q"})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestObservers_Empty(t *testing.T) {
	obs := engine.Observers()
	assert.IsType(t, engine.NopObserver{}, obs)
	obs.OnEvent(context.Background(), engine.Event{})
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rt := engine.New(engine.WithObserver(engine.LogObserver(logger)))
	in := engine.NewInput[string, int](rt, "sources")
	in.Set("a.cue", 1)

	out := buf.String()
	assert.Contains(t, out, "query event")
	assert.Contains(t, out, "event=set")
	assert.Contains(t, out, "query=sources")
	assert.Contains(t, out, "key=a.cue")

	buf.Reset()
	failing := engine.Compute1(rt, "parse", engine.Same(in),
		func(context.Context, string, engine.Optional[int]) (int, error) {
			return 0, errors.New("syntax")
		})
	_, err := failing.Get(context.Background(), "a.cue")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error=syntax")
}

type ctxKey struct{}

func TestInput_WritesCarryContext(t *testing.T) {
	var got []any
	rt := engine.New(engine.WithObserver(engine.ObserverFunc(func(ctx context.Context, ev engine.Event) {
		got = append(got, ctx.Value(ctxKey{}))
	})))
	in := engine.NewInput[string, int](rt, "sources")

	ctx := context.WithValue(context.Background(), ctxKey{}, "load")
	in.SetContext(ctx, "a.cue", 1)
	in.RemoveContext(ctx, "a.cue")
	in.Set("b.cue", 2)

	assert.Equal(t, []any{"load", "load", nil}, got)
}

func TestRuntime_EventStream(t *testing.T) {
	rec := testutil.NewRecorder()
	rt := engine.New(engine.WithObserver(rec))
	ctx := context.Background()

	in := engine.NewInput[string, int](rt, "in")
	sq := engine.Compute1(rt, "square", engine.Same(in),
		func(_ context.Context, _ string, v engine.Optional[int]) (int, error) {
			n := v.OrElse(0)
			return n * n, nil
		})

	_, err := sq.Get(ctx, "x") // negative input, computed
	require.NoError(t, err)
	_, err = sq.Get(ctx, "x") // hit
	require.NoError(t, err)
	in.Set("x", 0) // same square
	_, err = sq.Get(ctx, "x")
	require.NoError(t, err)

	assert.Equal(t, []engine.EventKind{engine.EventNegative, engine.EventSet}, rec.Kinds("in"))
	assert.Equal(t,
		[]engine.EventKind{engine.EventRecomputed, engine.EventHit, engine.EventCutoff},
		rec.Kinds("square"))
}

func TestRuntime_WithClock(t *testing.T) {
	rt := engine.New(engine.WithClock(engine.NewClockAt(41)))
	in := engine.NewInput[string, int](rt, "in")

	assert.Equal(t, engine.Revision(42), in.Set("k", 1))
	assert.Equal(t, engine.Revision(42), rt.Revision())
	assert.NotNil(t, rt.Logger())
}
