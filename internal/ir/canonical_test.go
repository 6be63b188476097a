package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, `42`},
		{"negative int64", int64(-7), `-7`},
		{"true", true, `true`},
		{"false", false, `false`},
		{"empty array", []any{}, `[]`},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"empty object", map[string]any{}, `{}`},
		{"sorted keys", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"string map", map[string]string{"z": "1", "y": "2"}, `{"y":"2","z":"1"}`},
		{"nested", map[string]any{"x": []any{1, "two", map[string]any{"k": true}}}, `{"x":[1,"two",{"k":true}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalCanonicalEscapes(t *testing.T) {
	got, err := MarshalCanonical("q\"b\\n\nt\tc\x01")
	require.NoError(t, err)
	assert.Equal(t, `"q\"b\\n\nt\tc\u0001"`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.ErrorContains(t, err, "null is forbidden")

	_, err = MarshalCanonical(1.5)
	assert.ErrorContains(t, err, "floats are forbidden")

	_, err = MarshalCanonical(map[string]any{"k": []any{3.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object["k"]: array[0]`)

	_, err = MarshalCanonical(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")

	var c *ConceptSpec
	_, err = MarshalCanonical(c)
	assert.ErrorContains(t, err, "null is forbidden")
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+FF61 sorts after U+1F600 in UTF-8 but before it in UTF-16, where the
	// emoji is a surrogate pair starting at 0xD83D.
	m := map[string]int{"｡": 1, "\U0001F600": 2, "a": 3}
	assert.Equal(t, []string{"a", "\U0001F600", "｡"}, SortedKeys(m))
}

func TestMarshalCanonicalConcept(t *testing.T) {
	c := ConceptSpec{
		Name:    "Counter",
		Purpose: "counts",
		Actions: []ActionSig{{
			Name: "inc",
			Args: []NamedArg{{Name: "by", Type: "int"}},
			Outputs: []OutputCase{{
				Case:   "Success",
				Fields: []NamedArg{{Name: "value", Type: "int"}},
			}},
		}},
		Source: "counter.cue",
	}

	got, err := MarshalCanonical(c)
	require.NoError(t, err)
	want := `{"actions":[{"args":[{"name":"by","type":"int"}],"name":"inc","outputs":[{"case":"Success","fields":[{"name":"value","type":"int"}]}]}],"name":"Counter","purpose":"counts","state_schema":[]}`
	assert.Equal(t, want, string(got))

	viaPtr, err := MarshalCanonical(&c)
	require.NoError(t, err)
	assert.Equal(t, got, viaPtr)
	assert.Equal(t, []string{"inc"}, c.ActionNames())
}
