package engine

import (
	"context"
	"sync"
)

// Singleton is a zero-key derived value with no declared dependencies.
//
// It treats itself as depending on "the current moment": it is recomputed on
// the first Get in every revision after any write anywhere in the runtime,
// related or not. Use it for globally scoped facts with few consumers, where
// fine-grained tracking is not worth its cost.
type Singleton[V any] struct {
	rt      *Runtime
	name    string
	compute func(ctx context.Context) (V, error)

	mu    sync.RWMutex
	entry Entry[V]
	has   bool
}

// NewSingleton creates a singleton query.
func NewSingleton[V any](rt *Runtime, name string, compute func(ctx context.Context) (V, error)) *Singleton[V] {
	return &Singleton[V]{
		rt:      rt,
		name:    name,
		compute: compute,
	}
}

// Name returns the query name.
func (s *Singleton[V]) Name() string {
	return s.name
}

// Get returns the cached value if it was computed at the current revision,
// and recomputes it otherwise.
func (s *Singleton[V]) Get(ctx context.Context) (Entry[V], error) {
	now := s.rt.clock.Current()

	s.mu.RLock()
	entry, has := s.entry, s.has
	s.mu.RUnlock()

	if has && entry.Changed == now {
		s.emit(ctx, EventHit, now, entry, nil)
		return entry, nil
	}

	ctx, err := s.rt.enter(ctx, s, s.name, nil)
	if err != nil {
		return Entry[V]{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry[V]{}, newCancelledError(s.name, "", err)
	}

	value, err := s.compute(ctx)
	if err != nil {
		s.emit(ctx, EventFailed, now, entry, err)
		return Entry[V]{}, wrapDependencyError(s.name, "", err)
	}

	entry = Entry[V]{Value: value, Changed: now, Checked: now}

	s.mu.Lock()
	// Never let a Get that started earlier overwrite a newer result.
	if !s.has || s.entry.Checked <= now {
		s.entry = entry
		s.has = true
	}
	s.mu.Unlock()

	s.emit(ctx, EventRecomputed, now, entry, nil)
	return entry, nil
}

// Peek returns the cached entry without validating it.
func (s *Singleton[V]) Peek() (Entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry, s.has
}

func (s *Singleton[V]) emit(ctx context.Context, kind EventKind, now Revision, entry Entry[V], err error) {
	s.rt.emit(ctx, Event{
		Kind:     kind,
		Query:    s.name,
		Revision: now,
		Changed:  entry.Changed,
		Checked:  entry.Checked,
		Err:      err,
	})
}

// singletonQuery presents a Singleton as a Query over any key type, ignoring
// the key.
type singletonQuery[K comparable, V any] struct {
	s *Singleton[V]
}

func (q singletonQuery[K, V]) Get(ctx context.Context, _ K) (Entry[V], error) {
	return q.s.Get(ctx)
}

func (q singletonQuery[K, V]) Name() string {
	if q.s == nil {
		return ""
	}
	return q.s.name
}
