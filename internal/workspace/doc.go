// Package workspace incrementally compiles a directory of CUE concept specs.
//
// Every stage is an engine query:
//
//	sources (input) ──► parsed (eager) ──► concepts (cutoff) ──┐
//	manifest (input) ───────────────────────────────────────── index (singleton)
//	                                                              │
//	                           report (eager) ◄── concept (cutoff, per name)
//
// Parse and compile failures are values (Diagnostics), never compute errors,
// so they are cached like any other result. Editing a comment re-parses the
// file but leaves its compiled concepts equal, so nothing downstream of
// "concepts" recomputes.
package workspace
