package engine

import (
	"context"
	"reflect"
	"sync"
)

// Policy selects what a derived query does after recomputing a stale entry.
type Policy int

const (
	// PolicyCutoff compares the recomputed value with the cached one and, when
	// equal, keeps Changed where it was (early cutoff). Dependents of an
	// unchanged value are not invalidated.
	PolicyCutoff Policy = iota + 1

	// PolicyEager stores every recomputed value as a change. Use it when
	// equality is meaningless or expensive, or when each recomputation
	// deliberately produces a fresh identity.
	PolicyEager
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyCutoff:
		return "cutoff"
	case PolicyEager:
		return "eager"
	default:
		return "unknown"
	}
}

// ComputeFunc computes a derived value from the dependency values of key,
// given in declaration order.
//
// Compute functions must be pure. A returned error propagates out of Get and
// nothing is cached, so the next Get retries. Expected data conditions (bad
// user input, parse errors) belong in V, not in the error.
type ComputeFunc[K comparable, V any] func(ctx context.Context, key K, args Args) (V, error)

// DerivedOption configures a derived query.
type DerivedOption[V any] func(*derivedConfig[V])

type derivedConfig[V any] struct {
	equal func(a, b V) bool
}

// WithEqual sets the equality used for early cutoff.
//
// Default: reflect.DeepEqual. Ignored by eager queries.
func WithEqual[V any](equal func(a, b V) bool) DerivedOption[V] {
	return func(c *derivedConfig[V]) {
		c.equal = equal
	}
}

// Derived is an N-ary derived query. It is the single implementation behind
// both compute (early cutoff) and eager queries.
//
// Get algorithm, with now the revision current when Get starts:
//  1. Entry already checked at now: return it.
//  2. Pull every dependency, validating each recursively.
//  3. No entry: compute and store {v, now, now}.
//  4. Every dependency Changed <= entry.Checked: set Checked = now.
//  5. Otherwise recompute and apply the Policy.
type Derived[K comparable, V any] struct {
	rt      *Runtime
	name    string
	policy  Policy
	deps    []Dependency[K]
	compute ComputeFunc[K, V]
	equal   func(a, b V) bool

	mu      sync.RWMutex
	entries map[K]Entry[V]
}

// NewCompute creates a derived query with early cutoff.
func NewCompute[K comparable, V any](rt *Runtime, name string, deps []Dependency[K], fn ComputeFunc[K, V], opts ...DerivedOption[V]) *Derived[K, V] {
	return newDerived(rt, name, PolicyCutoff, deps, fn, opts)
}

// NewEager creates a derived query that never cuts off.
func NewEager[K comparable, V any](rt *Runtime, name string, deps []Dependency[K], fn ComputeFunc[K, V], opts ...DerivedOption[V]) *Derived[K, V] {
	return newDerived(rt, name, PolicyEager, deps, fn, opts)
}

func newDerived[K comparable, V any](rt *Runtime, name string, policy Policy, deps []Dependency[K], fn ComputeFunc[K, V], opts []DerivedOption[V]) *Derived[K, V] {
	cfg := derivedConfig[V]{
		equal: func(a, b V) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	depsCopy := make([]Dependency[K], len(deps))
	copy(depsCopy, deps)

	return &Derived[K, V]{
		rt:      rt,
		name:    name,
		policy:  policy,
		deps:    depsCopy,
		compute: fn,
		equal:   cfg.equal,
		entries: make(map[K]Entry[V]),
	}
}

// Name returns the query name.
func (q *Derived[K, V]) Name() string {
	return q.name
}

// Policy returns the recomputation policy.
func (q *Derived[K, V]) Policy() Policy {
	return q.policy
}

// Get validates and returns the entry for key.
func (q *Derived[K, V]) Get(ctx context.Context, key K) (Entry[V], error) {
	now := q.rt.clock.Current()

	q.mu.RLock()
	entry, has := q.entries[key]
	q.mu.RUnlock()

	if has && entry.Checked == now {
		q.emit(ctx, EventHit, key, now, entry, nil)
		return entry, nil
	}

	ctx, err := q.rt.enter(ctx, q, q.name, key)
	if err != nil {
		return Entry[V]{}, err
	}

	args := make(Args, len(q.deps))
	stale := !has
	for i, dep := range q.deps {
		snap, err := dep.fetch(ctx, key)
		if err != nil {
			return Entry[V]{}, err
		}
		args[i] = snap.Value
		if has && snap.Changed > entry.Checked {
			stale = true
		}
	}

	if !stale {
		entry.Checked = now
		q.store(key, entry, now)
		q.emit(ctx, EventRevalidated, key, now, entry, nil)
		return entry, nil
	}

	if err := ctx.Err(); err != nil {
		return Entry[V]{}, newCancelledError(q.name, renderKey(key), err)
	}

	value, err := q.compute(ctx, key, args)
	if err != nil {
		q.emit(ctx, EventFailed, key, now, entry, err)
		return Entry[V]{}, wrapDependencyError(q.name, renderKey(key), err)
	}

	kind := EventRecomputed
	if has && q.policy == PolicyCutoff && q.equal(entry.Value, value) {
		entry.Checked = now
		kind = EventCutoff
	} else {
		entry = Entry[V]{Value: value, Changed: now, Checked: now}
	}

	q.store(key, entry, now)
	q.emit(ctx, kind, key, now, entry, nil)
	return entry, nil
}

// store writes entry unless a Get that started later already stored a newer one.
func (q *Derived[K, V]) store(key K, entry Entry[V], now Revision) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cur, ok := q.entries[key]; ok && cur.Checked > now {
		return
	}
	q.entries[key] = entry
}

// Peek returns the cached entry for key without validating it.
func (q *Derived[K, V]) Peek(key K) (Entry[V], bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	entry, ok := q.entries[key]
	return entry, ok
}

// Len returns the number of cached keys.
func (q *Derived[K, V]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

func (q *Derived[K, V]) emit(ctx context.Context, kind EventKind, key K, now Revision, entry Entry[V], err error) {
	q.rt.emit(ctx, Event{
		Kind:     kind,
		Query:    q.name,
		Key:      renderKey(key),
		Revision: now,
		Changed:  entry.Changed,
		Checked:  entry.Checked,
		Err:      err,
	})
}
