package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/derive/internal/ir"
)

// Validation error codes.
const (
	ErrConceptPurposeEmpty = "E101" // purpose is required
	ErrConceptNoActions    = "E102" // at least one action required
	ErrActionNoOutputs     = "E103" // action must have outputs
	ErrInvalidFieldType    = "E104" // invalid type string
	ErrDuplicateName       = "E105" // duplicate action/state/field name
	ErrInvalidIdentifier   = "E106" // name is not a valid identifier
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled concept against the schema rules and returns
// every violation found.
func Validate(spec *ir.ConceptSpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if !identifierPattern.MatchString(spec.Name) {
		add("name", ErrInvalidIdentifier, "invalid concept name %q", spec.Name)
	}
	if strings.TrimSpace(spec.Purpose) == "" {
		add("purpose", ErrConceptPurposeEmpty, "purpose is required and must be non-empty")
	}
	if len(spec.Actions) == 0 {
		add("actions", ErrConceptNoActions, "at least one action is required")
	}

	actionNames := make(map[string]bool)
	for i, action := range spec.Actions {
		if actionNames[action.Name] {
			add(fmt.Sprintf("actions[%d].name", i), ErrDuplicateName, "duplicate action name: %q", action.Name)
		}
		actionNames[action.Name] = true

		if len(action.Outputs) == 0 {
			add(fmt.Sprintf("actions[%d].outputs", i), ErrActionNoOutputs, "action %q must have at least one output case", action.Name)
		}
		errs = append(errs, validateFields(fmt.Sprintf("actions[%d].args", i), action.Args)...)
		for j, out := range action.Outputs {
			errs = append(errs, validateFields(fmt.Sprintf("actions[%d].outputs[%d].fields", i, j), out.Fields)...)
		}
	}

	stateNames := make(map[string]bool)
	for i, state := range spec.StateSchema {
		if stateNames[state.Name] {
			add(fmt.Sprintf("state_schema[%d].name", i), ErrDuplicateName, "duplicate state name: %q", state.Name)
		}
		stateNames[state.Name] = true
		errs = append(errs, validateFields(fmt.Sprintf("state_schema[%d].fields", i), state.Fields)...)
	}

	return errs
}

func validateFields(path string, fields []ir.NamedArg) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path + "." + f.Name,
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[f.Name] = true

		if !ir.ValidTypes[f.Type] {
			errs = append(errs, ValidationError{
				Field:   path + "." + f.Name,
				Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
		}
	}
	return errs
}
