package engine

import (
	"context"
	"log/slog"
)

// Runtime is the shared state every query of one engine instance is built on:
// the revision clock, the logger and the event observer.
//
// Runtimes are independent. Two runtimes never share revisions, so tests can
// build as many as they like without interference.
//
// Thread-safety model:
//   - Clock: atomic, safe from any goroutine
//   - Query maps: each query guards its own entries with a RWMutex held only
//     around map access; compute functions run outside the lock
//   - Every Get stamps entries with the revision observed when it started, so
//     a Set racing a Get leaves at worst a stale-looking entry that the next
//     pull recomputes
type Runtime struct {
	clock          *Clock
	logger         *slog.Logger
	observer       Observer
	cycleDetection bool
	maxDepth       int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the revision clock. Used to resume from a known revision.
func WithClock(c *Clock) Option {
	return func(rt *Runtime) {
		rt.clock = c
	}
}

// WithLogger sets the logger used for runtime diagnostics.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithObserver sets the event observer. Use Observers to combine several.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) {
		rt.observer = o
	}
}

// WithCycleDetection toggles the in-flight (query, key) guard.
//
// Default: enabled. When disabled, dependency graphs must be acyclic; a cycle
// recurses until the stack is exhausted.
func WithCycleDetection(enabled bool) Option {
	return func(rt *Runtime) {
		rt.cycleDetection = enabled
	}
}

// WithMaxDepth bounds the number of nested validations in one Get chain.
//
// Default: 0, no limit. Zero or negative disables the limit; chains of any
// acyclic depth then validate.
func WithMaxDepth(n int) Option {
	return func(rt *Runtime) {
		rt.maxDepth = n
	}
}

// New creates a Runtime with a fresh clock at revision 0.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		clock:          NewClock(),
		logger:         slog.Default(),
		observer:       NopObserver{},
		cycleDetection: true,
	}

	for _, opt := range opts {
		opt(rt)
	}

	if rt.observer == nil {
		rt.observer = NopObserver{}
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}

	return rt
}

// Clock returns the runtime's revision clock.
func (rt *Runtime) Clock() *Clock {
	return rt.clock
}

// Revision returns the current revision.
func (rt *Runtime) Revision() Revision {
	return rt.clock.Current()
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

func (rt *Runtime) emit(ctx context.Context, ev Event) {
	rt.observer.OnEvent(ctx, ev)
}
