package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/observe"
	"github.com/roach88/derive/internal/store"
	"github.com/roach88/derive/internal/workspace"
)

// sessionOptions selects the observers attached to a command's runtime.
type sessionOptions struct {
	Label   string
	TraceDB string
	Metrics bool
	Spans   bool
	Out     io.Writer // metrics and span destination
}

// session is a configured runtime plus the sinks its events flow into.
type session struct {
	rt       *engine.Runtime
	store    *store.Store
	recorder *store.Recorder
	metrics  *observe.Provider
	tracing  *sdktrace.TracerProvider
	counts   *eventCounts
	logger   *slog.Logger
}

// eventCounts tallies engine events by kind since the last reset.
type eventCounts struct {
	recomputed atomic.Int64
	cutoff     atomic.Int64
	hits       atomic.Int64
}

func (c *eventCounts) OnEvent(_ context.Context, ev engine.Event) {
	switch ev.Kind {
	case engine.EventRecomputed:
		c.recomputed.Add(1)
	case engine.EventCutoff:
		c.recomputed.Add(1)
		c.cutoff.Add(1)
	case engine.EventHit, engine.EventRevalidated:
		c.hits.Add(1)
	}
}

func (c *eventCounts) reset() {
	c.recomputed.Store(0)
	c.cutoff.Store(0)
	c.hits.Store(0)
}

// openSession builds a runtime whose events go to the trace database, the
// metrics exporter and the span exporter when requested.
func openSession(ctx context.Context, opts *RootOptions, so sessionOptions) (*session, error) {
	cfg := opts.config()
	s := &session{counts: &eventCounts{}, logger: opts.logger()}
	observers := []engine.Observer{s.counts}

	if opts.Verbose {
		observers = append(observers, engine.LogObserver(s.logger))
	}

	if so.TraceDB != "" {
		st, err := store.Open(so.TraceDB)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeTraceDB, Message: err.Error(), Path: so.TraceDB}
		}
		id, err := st.CreateSession(ctx, so.Label)
		if err != nil {
			st.Close()
			return nil, &LoadError{Code: ErrCodeTraceDB, Message: err.Error(), Path: so.TraceDB}
		}
		s.store = st
		s.recorder = st.Recorder(id, s.logger)
		observers = append(observers, s.recorder)
		s.logger.Debug("recording trace", "db", so.TraceDB, "session", id)
	}

	if so.Metrics {
		p, err := observe.NewStdoutProvider(so.Out)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.metrics = p
		observers = append(observers, p.Observer())
	}

	if so.Spans {
		tp, err := observe.NewStdoutTracerProvider(so.Out)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.tracing = tp
		observers = append(observers, observe.NewSpanObserver())
	}

	rtOpts := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithObserver(engine.Observers(observers...)),
		engine.WithCycleDetection(cfg.CycleDetectionEnabled()),
	}
	if cfg.MaxDepth > 0 {
		rtOpts = append(rtOpts, engine.WithMaxDepth(cfg.MaxDepth))
	}
	s.rt = engine.New(rtOpts...)
	return s, nil
}

// workspaceOptions returns the options for workspaces built on this session.
func (s *session) workspaceOptions() []workspace.Option {
	if s.tracing == nil {
		return nil
	}
	return []workspace.Option{workspace.WithTracerProvider(s.tracing)}
}

// sessionID returns the trace session id, or "" when no trace is recorded.
func (s *session) sessionID() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.Session()
}

// close flushes metrics and spans and closes the trace database.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.metrics != nil {
		errs = append(errs, s.metrics.Shutdown(ctx))
	}
	if s.tracing != nil {
		errs = append(errs, s.tracing.Shutdown(ctx))
	}
	if s.recorder != nil {
		if err := s.recorder.Err(); err != nil {
			errs = append(errs, err)
		}
		s.logger.Debug("trace recorded", "session", s.recorder.Session(), "events", s.recorder.Written())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
