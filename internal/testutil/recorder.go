package testutil

import (
	"context"
	"sync"

	"github.com/roach88/derive/internal/engine"
)

// Recorder is an in-memory engine.Observer that keeps every event in order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []engine.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEvent implements engine.Observer.
func (r *Recorder) OnEvent(_ context.Context, ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []engine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Event, len(r.events))
	copy(out, r.events)
	return out
}

// For returns the events recorded for one query, in order.
func (r *Recorder) For(query string) []engine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []engine.Event
	for _, ev := range r.events {
		if ev.Query == query {
			out = append(out, ev)
		}
	}
	return out
}

// Kinds returns the event kinds recorded for one query, in order.
func (r *Recorder) Kinds(query string) []engine.EventKind {
	var kinds []engine.EventKind
	for _, ev := range r.For(query) {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// Count returns how many events of kind were recorded for query.
func (r *Recorder) Count(query string, kind engine.EventKind) int {
	n := 0
	for _, ev := range r.For(query) {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
