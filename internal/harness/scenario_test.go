package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "early_cutoff.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "early_cutoff", s.Name)
	require.Len(t, s.Queries, 3)
	assert.Equal(t, QueryDef{Name: "label", Kind: KindCompute, Fn: "double", Deps: []string{"parity"}}, s.Queries[2])
	require.Len(t, s.Steps, 7)
	assert.Equal(t, "x", s.Steps[0].Set)
	assert.Equal(t, int64(2), s.Steps[0].Value)
	require.NotNil(t, s.Steps[3].Expect)
	require.NotNil(t, s.Steps[3].Expect.Checked)
	assert.Equal(t, int64(2), *s.Steps[3].Expect.Checked)
	assert.Equal(t, map[string]int{"parity": 1, "label": 0}, s.Steps[3].Computes)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarioUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
description: misspelled field
queries:
  - {name: x, kind: input}
step:
  - {set: x, key: a, value: 1}
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", `
description: d
queries: [{name: x, kind: input}]
steps: [{set: x, key: a, value: 1}]`, "name is required"},
		{"missing description", `
name: n
queries: [{name: x, kind: input}]
steps: [{set: x, key: a, value: 1}]`, "description is required"},
		{"no queries", `
name: n
description: d
steps: [{set: x, key: a, value: 1}]`, "queries list is required"},
		{"no steps", `
name: n
description: d
queries: [{name: x, kind: input}]`, "steps list is required"},
		{"unknown kind", `
name: n
description: d
queries: [{name: x, kind: lazy}]
steps: [{get: x, key: a}]`, `unknown kind "lazy"`},
		{"unknown fn", `
name: n
description: d
queries: [{name: x, kind: input}, {name: y, kind: compute, fn: cube, deps: [x]}]
steps: [{get: y, key: a}]`, `unknown fn "cube"`},
		{"forward dep", `
name: n
description: d
queries: [{name: y, kind: compute, fn: double, deps: [x]}, {name: x, kind: input}]
steps: [{get: y, key: a}]`, `dep on undeclared query "x"`},
		{"duplicate query", `
name: n
description: d
queries: [{name: x, kind: input}, {name: x, kind: input}]
steps: [{get: x, key: a}]`, `duplicate query "x"`},
		{"two actions", `
name: n
description: d
queries: [{name: x, kind: input}]
steps: [{set: x, get: x, key: a}]`, "exactly one of set, remove or get"},
		{"set derived", `
name: n
description: d
queries: [{name: x, kind: input}, {name: y, kind: compute, fn: double, deps: [x]}]
steps: [{set: y, key: a, value: 1}]`, `"y" is not an input`},
		{"expect on set", `
name: n
description: d
queries: [{name: x, kind: input}]
steps: [{set: x, key: a, value: 1, expect: {value: 1}}]`, "expect is only valid on get"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
