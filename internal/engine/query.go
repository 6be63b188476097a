package engine

import "context"

// Query is the capability shared by every query kind: pull the entry for a
// key, validating (and possibly recomputing) it against the current revision.
type Query[K comparable, V any] interface {
	Get(ctx context.Context, key K) (Entry[V], error)
}

// Named is implemented by queries that carry a diagnostic name.
type Named interface {
	Name() string
}

var (
	_ Query[string, Optional[int]] = (*Input[string, int])(nil)
	_ Query[string, int]           = (*Derived[string, int])(nil)
	_ Query[struct{}, int]         = singletonQuery[struct{}, int]{}
)
