// Package harness runs conformance scenarios against the engine.
//
// A scenario is a YAML file declaring a small graph of int64 queries built
// from named builtin functions, followed by steps that write inputs and read
// queries. Each read can assert the value, the revision stamps and how many
// compute functions actually ran.
//
// Example:
//
//	name: early_cutoff
//	description: equal recomputed values do not invalidate dependents
//	queries:
//	  - {name: x, kind: input}
//	  - {name: parity, kind: compute, fn: parity, deps: [x]}
//	steps:
//	  - {set: x, key: a, value: 2}
//	  - get: parity
//	    key: a
//	    expect: {value: 0, changed: 1}
//	    computes: {parity: 1}
//
// RunWithGolden additionally compares the full event trace, serialized with
// ir.MarshalCanonical, against testdata/golden/<name>.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
