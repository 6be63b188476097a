package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Query kinds.
const (
	KindInput     = "input"
	KindSingleton = "singleton"
	KindEager     = "eager"
	KindCompute   = "compute"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Queries declares the graph. A query may only depend on queries declared
	// before it.
	Queries []QueryDef `yaml:"queries"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// QueryDef declares one query.
type QueryDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Fn names a builtin. Required for every kind except input.
	Fn string `yaml:"fn,omitempty"`

	// Deps are read at the dependent's key (eager, compute) or are singletons
	// read globally.
	Deps []string `yaml:"deps,omitempty"`

	// Reads are the fixed (query, key) pairs a singleton sums over.
	Reads []Ref `yaml:"reads,omitempty"`
}

// Ref names one key of one query.
type Ref struct {
	Query string `yaml:"query"`
	Key   string `yaml:"key"`
}

// Step is one action. Exactly one of Set, Remove or Get is non-empty.
type Step struct {
	Set    string `yaml:"set,omitempty"`
	Remove string `yaml:"remove,omitempty"`
	Get    string `yaml:"get,omitempty"`
	Key    string `yaml:"key,omitempty"`
	Value  int64  `yaml:"value,omitempty"`

	// Expect checks the result of a get.
	Expect *Expect `yaml:"expect,omitempty"`

	// Computes checks how many times each listed query's compute function
	// ran during this step. Unlisted queries are not checked.
	Computes map[string]int `yaml:"computes,omitempty"`
}

// Expect specifies the expected outcome of a get. Nil fields are not checked.
type Expect struct {
	Value   *int64 `yaml:"value,omitempty"`
	Changed *int64 `yaml:"changed,omitempty"`
	Checked *int64 `yaml:"checked,omitempty"`

	// Error is the expected QueryError code, e.g. COMPUTE_FAILED.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is structurally invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and the graph is
// declared in dependency order.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	kinds := make(map[string]string)
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if _, dup := kinds[q.Name]; dup {
			return fmt.Errorf("queries[%d]: duplicate query %q", i, q.Name)
		}

		switch q.Kind {
		case KindInput:
			if q.Fn != "" || len(q.Deps) > 0 || len(q.Reads) > 0 {
				return fmt.Errorf("query %q: inputs take no fn, deps or reads", q.Name)
			}
		case KindSingleton:
			if len(q.Deps) > 0 {
				return fmt.Errorf("query %q: singletons use reads, not deps", q.Name)
			}
			for _, r := range q.Reads {
				if _, ok := kinds[r.Query]; !ok {
					return fmt.Errorf("query %q: read of undeclared query %q", q.Name, r.Query)
				}
			}
		case KindEager, KindCompute:
			if len(q.Deps) == 0 {
				return fmt.Errorf("query %q: at least one dep is required", q.Name)
			}
			for _, d := range q.Deps {
				if _, ok := kinds[d]; !ok {
					return fmt.Errorf("query %q: dep on undeclared query %q", q.Name, d)
				}
			}
		default:
			return fmt.Errorf("query %q: unknown kind %q", q.Name, q.Kind)
		}

		if q.Kind != KindInput {
			if _, ok := builtins[q.Fn]; !ok {
				return fmt.Errorf("query %q: unknown fn %q", q.Name, q.Fn)
			}
		}
		kinds[q.Name] = q.Kind
	}

	for i, st := range s.Steps {
		n := 0
		for _, name := range []string{st.Set, st.Remove, st.Get} {
			if name != "" {
				n++
				if _, ok := kinds[name]; !ok {
					return fmt.Errorf("steps[%d]: unknown query %q", i, name)
				}
			}
		}
		if n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of set, remove or get is required", i)
		}
		if st.Set != "" && kinds[st.Set] != KindInput {
			return fmt.Errorf("steps[%d]: %q is not an input", i, st.Set)
		}
		if st.Remove != "" && kinds[st.Remove] != KindInput {
			return fmt.Errorf("steps[%d]: %q is not an input", i, st.Remove)
		}
		if st.Expect != nil && st.Get == "" {
			return fmt.Errorf("steps[%d]: expect is only valid on get", i)
		}
	}

	return nil
}
