package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/testutil"
)

// TraceEvent is one engine event, tagged with the step that caused it.
type TraceEvent struct {
	Step     int    `json:"step"`
	Kind     string `json:"kind"`
	Query    string `json:"query"`
	Key      string `json:"key,omitempty"`
	Revision int64  `json:"revision"`
	Changed  int64  `json:"changed"`
	Checked  int64  `json:"checked"`
	Error    string `json:"error,omitempty"`
}

// StepResult records what one step observed.
type StepResult struct {
	Index    int
	Value    int64
	Changed  int64
	Checked  int64
	Err      error
	Computes map[string]int
}

// Result is the outcome of running a scenario.
type Result struct {
	Steps    []StepResult
	Trace    []TraceEvent
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// Harness owns the runtime and queries built for one scenario run.
type Harness struct {
	rt       *engine.Runtime
	recorder *testutil.Recorder
	counter  *testutil.Counter
	logger   *slog.Logger

	inputs     map[string]*engine.Input[string, int64]
	derived    map[string]*engine.Derived[string, int64]
	singletons map[string]*engine.Singleton[int64]
}

// Run executes a scenario on a fresh runtime and returns the result.
//
// Setup problems (an invalid graph) are returned as an error. Expectation
// mismatches are collected in Result.Failures so a run always reports every
// failed step.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := newHarness()
	h.build(scenario.Queries)

	result := &Result{}
	for i, step := range scenario.Steps {
		h.recorder.Reset()
		h.counter.Reset()

		sr := h.runStep(ctx, i, step)
		result.Steps = append(result.Steps, sr)
		result.Failures = append(result.Failures, checkStep(i, step, sr)...)

		for _, ev := range h.recorder.Events() {
			result.Trace = append(result.Trace, toTraceEvent(i, ev))
		}
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"events", len(result.Trace),
		"failures", len(result.Failures),
	)
	return result, nil
}

func newHarness() *Harness {
	rec := testutil.NewRecorder()
	return &Harness{
		rt:         engine.New(engine.WithObserver(rec)),
		recorder:   rec,
		counter:    testutil.NewCounter(),
		logger:     slog.Default(),
		inputs:     make(map[string]*engine.Input[string, int64]),
		derived:    make(map[string]*engine.Derived[string, int64]),
		singletons: make(map[string]*engine.Singleton[int64]),
	}
}

func (h *Harness) build(defs []QueryDef) {
	for _, def := range defs {
		switch def.Kind {
		case KindInput:
			h.inputs[def.Name] = engine.NewInput[string, int64](h.rt, def.Name)
		case KindSingleton:
			h.singletons[def.Name] = engine.NewSingleton(h.rt, def.Name, h.singletonFunc(def))
		case KindEager:
			h.derived[def.Name] = engine.NewEager(h.rt, def.Name, h.dependencies(def.Deps), h.computeFunc(def))
		case KindCompute:
			h.derived[def.Name] = engine.NewCompute(h.rt, def.Name, h.dependencies(def.Deps), h.computeFunc(def))
		}
	}
}

func (h *Harness) dependencies(names []string) []engine.Dependency[string] {
	deps := make([]engine.Dependency[string], 0, len(names))
	for _, name := range names {
		switch {
		case h.inputs[name] != nil:
			deps = append(deps, engine.Same(h.inputs[name]))
		case h.derived[name] != nil:
			deps = append(deps, engine.Same(h.derived[name]))
		case h.singletons[name] != nil:
			deps = append(deps, engine.Global[string](h.singletons[name]))
		}
	}
	return deps
}

func (h *Harness) computeFunc(def QueryDef) engine.ComputeFunc[string, int64] {
	fn := builtins[def.Fn]
	return func(_ context.Context, _ string, args engine.Args) (int64, error) {
		h.counter.Inc(def.Name)
		values := make([]int64, len(args))
		for i, a := range args {
			values[i] = toInt(a)
		}
		return fn(values)
	}
}

func (h *Harness) singletonFunc(def QueryDef) func(ctx context.Context) (int64, error) {
	fn := builtins[def.Fn]
	return func(ctx context.Context) (int64, error) {
		h.counter.Inc(def.Name)
		values := make([]int64, 0, len(def.Reads))
		for _, r := range def.Reads {
			v, err := h.read(ctx, r.Query, r.Key)
			if err != nil {
				return 0, err
			}
			values = append(values, v)
		}
		return fn(values)
	}
}

// toInt flattens a dependency value; an absent input reads as 0.
func toInt(v any) int64 {
	switch val := v.(type) {
	case engine.Optional[int64]:
		return val.OrElse(0)
	case int64:
		return val
	default:
		return 0
	}
}

func (h *Harness) read(ctx context.Context, query, key string) (int64, error) {
	entry, err := h.get(ctx, query, key)
	return entry.Value, err
}

func (h *Harness) get(ctx context.Context, query, key string) (engine.Entry[int64], error) {
	switch {
	case h.inputs[query] != nil:
		e, err := h.inputs[query].Get(ctx, key)
		if err != nil {
			return engine.Entry[int64]{}, err
		}
		return engine.Entry[int64]{Value: e.Value.OrElse(0), Changed: e.Changed, Checked: e.Checked}, nil
	case h.derived[query] != nil:
		return h.derived[query].Get(ctx, key)
	case h.singletons[query] != nil:
		return h.singletons[query].Get(ctx)
	}
	return engine.Entry[int64]{}, fmt.Errorf("unknown query %q", query)
}

func (h *Harness) runStep(ctx context.Context, i int, step Step) StepResult {
	sr := StepResult{Index: i}
	switch {
	case step.Set != "":
		h.inputs[step.Set].Set(step.Key, step.Value)
	case step.Remove != "":
		h.inputs[step.Remove].Remove(step.Key)
	case step.Get != "":
		entry, err := h.get(ctx, step.Get, step.Key)
		sr.Value = entry.Value
		sr.Changed = int64(entry.Changed)
		sr.Checked = int64(entry.Checked)
		sr.Err = err
	}

	sr.Computes = make(map[string]int)
	for name := range h.derived {
		if n := h.counter.Get(name); n > 0 {
			sr.Computes[name] = n
		}
	}
	for name := range h.singletons {
		if n := h.counter.Get(name); n > 0 {
			sr.Computes[name] = n
		}
	}
	return sr
}

func checkStep(i int, step Step, sr StepResult) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf("step %d: ", i)+fmt.Sprintf(format, args...))
	}

	if exp := step.Expect; exp != nil {
		if exp.Error != "" {
			var qe *engine.QueryError
			switch {
			case sr.Err == nil:
				fail("expected error %s, got value %d", exp.Error, sr.Value)
			case !errors.As(sr.Err, &qe):
				fail("expected error %s, got %v", exp.Error, sr.Err)
			case string(qe.Code) != exp.Error:
				fail("expected error %s, got %s", exp.Error, qe.Code)
			}
		} else if sr.Err != nil {
			fail("unexpected error: %v", sr.Err)
		} else {
			if exp.Value != nil && *exp.Value != sr.Value {
				fail("value = %d, want %d", sr.Value, *exp.Value)
			}
			if exp.Changed != nil && *exp.Changed != sr.Changed {
				fail("changed = %d, want %d", sr.Changed, *exp.Changed)
			}
			if exp.Checked != nil && *exp.Checked != sr.Checked {
				fail("checked = %d, want %d", sr.Checked, *exp.Checked)
			}
		}
	} else if sr.Err != nil {
		fail("unexpected error: %v", sr.Err)
	}

	for _, name := range slices.Sorted(maps.Keys(step.Computes)) {
		if got, want := sr.Computes[name], step.Computes[name]; got != want {
			fail("%s computed %d times, want %d", name, got, want)
		}
	}
	return failures
}

func toTraceEvent(step int, ev engine.Event) TraceEvent {
	te := TraceEvent{
		Step:     step,
		Kind:     string(ev.Kind),
		Query:    ev.Query,
		Key:      ev.Key,
		Revision: int64(ev.Revision),
		Changed:  int64(ev.Changed),
		Checked:  int64(ev.Checked),
	}
	if ev.Err != nil {
		te.Error = ev.Err.Error()
	}
	return te
}
