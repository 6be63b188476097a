package engine

// Entry is the memoization state for one key of one query.
//
// INVARIANTS:
//   - Checked >= Changed
//   - Changed only moves when Value is actually replaced
//   - Checked moves whenever the entry is confirmed valid at a newer revision
type Entry[V any] struct {
	// Value is the cached payload.
	Value V

	// Changed is the revision at which Value was last replaced.
	Changed Revision

	// Checked is the revision as of which the entry was last confirmed valid.
	Checked Revision
}

// snapshot erases the payload type so dependents can compare stamps without
// knowing V.
func (e Entry[V]) snapshot() Snapshot {
	return Snapshot{Value: e.Value, Changed: e.Changed, Checked: e.Checked}
}

// Snapshot is a type-erased view of a dependency's entry.
type Snapshot struct {
	Value   any
	Changed Revision
	Checked Revision
}

// Optional is the payload of an input query: either a value or the confirmed
// absence of one.
type Optional[V any] struct {
	value V
	ok    bool
}

// Some wraps a present value.
func Some[V any](v V) Optional[V] {
	return Optional[V]{value: v, ok: true}
}

// None returns the absent value.
func None[V any]() Optional[V] {
	return Optional[V]{}
}

// Get returns the value and whether it is present.
func (o Optional[V]) Get() (V, bool) {
	return o.value, o.ok
}

// IsSome reports whether a value is present.
func (o Optional[V]) IsSome() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Optional[V]) OrElse(def V) V {
	if o.ok {
		return o.value
	}
	return def
}
