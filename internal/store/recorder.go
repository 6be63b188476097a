package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/derive/internal/engine"
)

// Recorder is an engine.Observer that appends every event to one session.
//
// Observers cannot fail, so write errors are logged and the first one is kept
// for Err.
//
// Thread-safety: OnEvent is safe for concurrent use; events are numbered in
// the order their writes are serialized.
type Recorder struct {
	store   *Store
	session string
	logger  *slog.Logger

	mu  sync.Mutex
	seq int64
	err error
}

// Recorder returns an observer recording into session.
func (s *Store) Recorder(session string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, session: session, logger: logger}
}

// Session returns the session being recorded.
func (r *Recorder) Session() string {
	return r.session
}

// OnEvent implements engine.Observer.
func (r *Recorder) OnEvent(ctx context.Context, ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if err := r.store.WriteEvent(context.WithoutCancel(ctx), r.session, r.seq, ev); err != nil {
		r.logger.Warn("trace write failed", "session", r.session, "seq", r.seq, "error", err)
		if r.err == nil {
			r.err = err
		}
	}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Written returns the number of events recorded so far.
func (r *Recorder) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}
