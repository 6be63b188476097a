package engine

import (
	"context"
	"fmt"
)

// frame is one (query, key) pair on the validation chain of a single Get.
//
// The chain lives in the context rather than in the runtime, so concurrent
// Gets each see only their own call stack.
type frame struct {
	query  any // query identity (pointer)
	name   string
	key    any
	parent *frame
	depth  int
}

type frameKey struct{}

// enter pushes (query, key) onto the validation chain carried by ctx.
//
// Returns a cycle error if the same pair is already on the chain, and a depth
// error if the chain is longer than the runtime allows. When both guards are
// disabled the context is returned unchanged.
func (rt *Runtime) enter(ctx context.Context, query any, name string, key any) (context.Context, error) {
	if !rt.cycleDetection && rt.maxDepth <= 0 {
		return ctx, nil
	}

	parent, _ := ctx.Value(frameKey{}).(*frame)

	if rt.cycleDetection {
		for f := parent; f != nil; f = f.parent {
			if f.query == query && f.key == key {
				return ctx, NewCycleError(name, renderKey(key), chainPath(parent, name, key))
			}
		}
	}

	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	if rt.maxDepth > 0 && depth > rt.maxDepth {
		return ctx, NewDepthError(name, renderKey(key), depth, rt.maxDepth)
	}

	return context.WithValue(ctx, frameKey{}, &frame{
		query:  query,
		name:   name,
		key:    key,
		parent: parent,
		depth:  depth,
	}), nil
}

// chainPath renders the chain outermost first, ending with the re-entered frame.
func chainPath(top *frame, name string, key any) []string {
	var rev []string
	for f := top; f != nil; f = f.parent {
		rev = append(rev, frameLabel(f.name, f.key))
	}
	path := make([]string, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return append(path, frameLabel(name, key))
}

func frameLabel(name string, key any) string {
	return name + "(" + renderKey(key) + ")"
}

// renderKey formats a key for errors, logs and trace rows.
func renderKey(key any) string {
	switch k := key.(type) {
	case nil:
		return ""
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}
