package ir

// ConceptSpec represents a compiled concept definition.
type ConceptSpec struct {
	Name        string        `json:"name"`
	Purpose     string        `json:"purpose"`
	StateSchema []StateSchema `json:"state_schema"`
	Actions     []ActionSig   `json:"actions"`
	Source      string        `json:"source,omitempty"` // file the concept was compiled from
}

// ActionSig represents an action signature with typed inputs/outputs.
type ActionSig struct {
	Name    string       `json:"name"`
	Args    []NamedArg   `json:"args"`
	Outputs []OutputCase `json:"outputs"`
}

// OutputCase represents a typed output variant (success or error).
type OutputCase struct {
	Case   string     `json:"case"`   // "Success", "InsufficientStock", etc.
	Fields []NamedArg `json:"fields"` // ordered as declared
}

// StateSchema represents a state table definition.
type StateSchema struct {
	Name   string     `json:"name"`
	Fields []NamedArg `json:"fields"`
}

// NamedArg represents a named argument with type.
type NamedArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ValidTypes lists the field type names the compiler emits.
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
}

// ActionNames returns the concept's action names in declaration order.
func (c ConceptSpec) ActionNames() []string {
	names := make([]string, len(c.Actions))
	for i, a := range c.Actions {
		names[i] = a.Name
	}
	return names
}

// toCanonical converts the concept to the generic shape MarshalCanonical accepts.
func (c ConceptSpec) toCanonical() map[string]any {
	states := make([]any, len(c.StateSchema))
	for i, s := range c.StateSchema {
		states[i] = map[string]any{"name": s.Name, "fields": namedArgs(s.Fields)}
	}

	actions := make([]any, len(c.Actions))
	for i, a := range c.Actions {
		outputs := make([]any, len(a.Outputs))
		for j, o := range a.Outputs {
			outputs[j] = map[string]any{"case": o.Case, "fields": namedArgs(o.Fields)}
		}
		actions[i] = map[string]any{
			"name":    a.Name,
			"args":    namedArgs(a.Args),
			"outputs": outputs,
		}
	}

	return map[string]any{
		"name":         c.Name,
		"purpose":      c.Purpose,
		"state_schema": states,
		"actions":      actions,
	}
}

func namedArgs(args []NamedArg) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = map[string]any{"name": a.Name, "type": a.Type}
	}
	return out
}
