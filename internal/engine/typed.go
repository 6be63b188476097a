package engine

import "context"

// Typed constructors for the common small arities. They all build on the same
// N-ary Derived implementation; the Args they receive were produced by the
// Dep values passed in, so the type assertions in Arg always hold.

// Compute1 creates an early-cutoff query over one dependency.
func Compute1[K comparable, D1, V any](
	rt *Runtime,
	name string,
	d1 Dep[K, D1],
	fn func(ctx context.Context, key K, v1 D1) (V, error),
	opts ...DerivedOption[V],
) *Derived[K, V] {
	return NewCompute(rt, name, []Dependency[K]{d1},
		func(ctx context.Context, key K, args Args) (V, error) {
			return fn(ctx, key, Arg[D1](args, 0))
		}, opts...)
}

// Compute2 creates an early-cutoff query over two dependencies.
func Compute2[K comparable, D1, D2, V any](
	rt *Runtime,
	name string,
	d1 Dep[K, D1],
	d2 Dep[K, D2],
	fn func(ctx context.Context, key K, v1 D1, v2 D2) (V, error),
	opts ...DerivedOption[V],
) *Derived[K, V] {
	return NewCompute(rt, name, []Dependency[K]{d1, d2},
		func(ctx context.Context, key K, args Args) (V, error) {
			return fn(ctx, key, Arg[D1](args, 0), Arg[D2](args, 1))
		}, opts...)
}

// Compute3 creates an early-cutoff query over three dependencies.
func Compute3[K comparable, D1, D2, D3, V any](
	rt *Runtime,
	name string,
	d1 Dep[K, D1],
	d2 Dep[K, D2],
	d3 Dep[K, D3],
	fn func(ctx context.Context, key K, v1 D1, v2 D2, v3 D3) (V, error),
	opts ...DerivedOption[V],
) *Derived[K, V] {
	return NewCompute(rt, name, []Dependency[K]{d1, d2, d3},
		func(ctx context.Context, key K, args Args) (V, error) {
			return fn(ctx, key, Arg[D1](args, 0), Arg[D2](args, 1), Arg[D3](args, 2))
		}, opts...)
}

// Eager1 creates an eager query over one dependency.
func Eager1[K comparable, D1, V any](
	rt *Runtime,
	name string,
	d1 Dep[K, D1],
	fn func(ctx context.Context, key K, v1 D1) (V, error),
) *Derived[K, V] {
	return NewEager(rt, name, []Dependency[K]{d1},
		func(ctx context.Context, key K, args Args) (V, error) {
			return fn(ctx, key, Arg[D1](args, 0))
		})
}

// Eager2 creates an eager query over two dependencies.
func Eager2[K comparable, D1, D2, V any](
	rt *Runtime,
	name string,
	d1 Dep[K, D1],
	d2 Dep[K, D2],
	fn func(ctx context.Context, key K, v1 D1, v2 D2) (V, error),
) *Derived[K, V] {
	return NewEager(rt, name, []Dependency[K]{d1, d2},
		func(ctx context.Context, key K, args Args) (V, error) {
			return fn(ctx, key, Arg[D1](args, 0), Arg[D2](args, 1))
		})
}
