package engine

import "context"

// Dependency is a type-erased accessor from a dependent query's key to the
// entry of a query it depends on. Derived queries only need the stamps to
// decide staleness; the value is handed to the compute function as an Arg.
//
// Dependencies are built with On, Same and Global.
type Dependency[K comparable] interface {
	fetch(ctx context.Context, key K) (Snapshot, error)
}

// Dep is a typed dependency accessor. It satisfies Dependency[K] and is also a
// Query[K, D], so typed compute helpers can read it directly.
type Dep[K comparable, D any] struct {
	name string
	get  func(ctx context.Context, key K) (Entry[D], error)
}

// Get pulls the dependency's entry for the dependent key.
func (d Dep[K, D]) Get(ctx context.Context, key K) (Entry[D], error) {
	return d.get(ctx, key)
}

// Name returns the name of the underlying query.
func (d Dep[K, D]) Name() string {
	return d.name
}

func (d Dep[K, D]) fetch(ctx context.Context, key K) (Snapshot, error) {
	entry, err := d.get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	return entry.snapshot(), nil
}

// On declares a dependency on q at the key derived from the dependent key.
func On[K, DK comparable, D any](q Query[DK, D], key func(K) DK) Dep[K, D] {
	return Dep[K, D]{
		name: queryName(q),
		get: func(ctx context.Context, k K) (Entry[D], error) {
			return q.Get(ctx, key(k))
		},
	}
}

// Same declares a dependency on q at the same key as the dependent query.
func Same[K comparable, D any](q Query[K, D]) Dep[K, D] {
	return Dep[K, D]{
		name: queryName(q),
		get:  q.Get,
	}
}

// Global declares a dependency on a singleton, whatever the dependent key.
func Global[K comparable, V any](s *Singleton[V]) Dep[K, V] {
	q := singletonQuery[K, V]{s: s}
	return Dep[K, V]{
		name: s.name,
		get:  q.Get,
	}
}

func queryName(q any) string {
	if n, ok := q.(Named); ok {
		return n.Name()
	}
	return ""
}

// Args holds dependency values in declaration order.
type Args []any

// Arg returns the i-th dependency value as D. A nil value yields D's zero value.
func Arg[D any](args Args, i int) D {
	v, _ := args[i].(D)
	return v
}
