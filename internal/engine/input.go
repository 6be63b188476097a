package engine

import (
	"context"
	"sync"
)

// Input holds externally written facts. It is the only query kind that
// allocates revisions.
//
// Input implements Query[K, Optional[V]]. Reading a key that was never set is
// not an error: it stores a negative entry stamped at the current revision, so
// a later Set is seen as a change by anything that observed the absence.
type Input[K comparable, V any] struct {
	rt      *Runtime
	name    string
	mu      sync.RWMutex
	entries map[K]Entry[Optional[V]]
}

// NewInput creates an empty input query.
func NewInput[K comparable, V any](rt *Runtime, name string) *Input[K, V] {
	return &Input[K, V]{
		rt:      rt,
		name:    name,
		entries: make(map[K]Entry[Optional[V]]),
	}
}

// Name returns the query name.
func (q *Input[K, V]) Name() string {
	return q.name
}

// Set writes a fact and returns the revision it was stamped with.
//
// Every write counts as a change, even if value equals the previous one:
// inputs are ground truth and have no early cutoff.
func (q *Input[K, V]) Set(key K, value V) Revision {
	return q.SetContext(context.Background(), key, value)
}

// SetContext is Set with the context handed to observers, so the write is
// attributed to the caller's span.
func (q *Input[K, V]) SetContext(ctx context.Context, key K, value V) Revision {
	return q.write(ctx, key, Some(value), EventSet)
}

// Remove writes the absence of a fact. Like Set, it always counts as a change.
func (q *Input[K, V]) Remove(key K) Revision {
	return q.RemoveContext(context.Background(), key)
}

// RemoveContext is Remove with the context handed to observers.
func (q *Input[K, V]) RemoveContext(ctx context.Context, key K) Revision {
	return q.write(ctx, key, None[V](), EventRemove)
}

func (q *Input[K, V]) write(ctx context.Context, key K, value Optional[V], kind EventKind) Revision {
	q.mu.Lock()
	rev := q.rt.clock.Advance()
	entry := Entry[Optional[V]]{Value: value, Changed: rev, Checked: rev}
	q.entries[key] = entry
	q.mu.Unlock()

	q.rt.emit(ctx, Event{
		Kind:     kind,
		Query:    q.name,
		Key:      renderKey(key),
		Revision: rev,
		Changed:  rev,
		Checked:  rev,
	})
	return rev
}

// Get returns the entry for key, synthesizing a negative entry if the key was
// never written.
func (q *Input[K, V]) Get(ctx context.Context, key K) (Entry[Optional[V]], error) {
	q.mu.RLock()
	entry, ok := q.entries[key]
	q.mu.RUnlock()
	if ok {
		return entry, nil
	}

	q.mu.Lock()
	// A concurrent Set or Get may have filled the slot.
	if entry, ok = q.entries[key]; ok {
		q.mu.Unlock()
		return entry, nil
	}
	now := q.rt.clock.Current()
	entry = Entry[Optional[V]]{Value: None[V](), Changed: now, Checked: now}
	q.entries[key] = entry
	q.mu.Unlock()

	q.rt.emit(ctx, Event{
		Kind:     EventNegative,
		Query:    q.name,
		Key:      renderKey(key),
		Revision: now,
		Changed:  now,
		Checked:  now,
	})
	return entry, nil
}

// Value is a convenience for Get followed by Optional.Get.
func (q *Input[K, V]) Value(ctx context.Context, key K) (V, bool, error) {
	entry, err := q.Get(ctx, key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	v, ok := entry.Value.Get()
	return v, ok, nil
}

// Keys returns the keys that currently hold a value. Order is unspecified.
func (q *Input[K, V]) Keys() []K {
	q.mu.RLock()
	defer q.mu.RUnlock()

	keys := make([]K, 0, len(q.entries))
	for k, e := range q.entries {
		if e.Value.IsSome() {
			keys = append(keys, k)
		}
	}
	return keys
}
