// Package engine implements the incremental recomputation engine behind the
// derived-fact cache.
//
// Consumers treat parsing, name resolution and similar derived data as pure
// functions of mutable source facts. The engine re-executes only the
// computations an edit actually invalidated.
//
// QUERY KINDS:
//
//   - Input: externally written facts. Set allocates a new revision; reading
//     an unset key stores a negative entry.
//   - Singleton: zero-key value recomputed whenever any write happened since
//     it was last computed. No dependency tracking.
//   - Derived with PolicyEager: N-ary value recomputed whenever a dependency
//     changed since it was last checked. Every recomputation is a change.
//   - Derived with PolicyCutoff: same staleness check, but a recomputed value
//     equal to the cached one does not advance Changed (early cutoff).
//
// Data flow is pull-based and lazy. Nothing recomputes until observed:
//
//	rt := engine.New()
//	ages := engine.NewInput[string, int](rt, "ages")
//	adult := engine.Compute1(rt, "is_adult", engine.Same(ages),
//		func(ctx context.Context, _ string, age engine.Optional[int]) (bool, error) {
//			return age.OrElse(0) >= 18, nil
//		})
//
//	ages.Set("alice", 30)
//	entry, err := adult.Get(ctx, "alice")
//
// REVISIONS:
//
// One Clock per Runtime. Advance is called exactly once per input write and
// the revision it returns is the new Current. Runtimes are independent.
//
// ERRORS:
//
// A compute error propagates out of Get as a QueryError and nothing is
// stored; the next Get retries. Cycles in the dependency graph are reported
// as CYCLE_DETECTED rather than recursing without bound.
//
// CONCURRENCY:
//
// Gets and Sets may run on different goroutines. Each query locks its own map
// only around reads and writes; compute functions run unlocked. An entry is
// always stamped with the revision its Get started at, so results computed
// while a write lands are seen as stale by the next pull.
package engine
