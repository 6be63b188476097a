package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/derive/internal/ir"
)

// CompileError is one problem in a concept, with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileErrors is every problem found in one concept, in source order.
type CompileErrors []*CompileError

func (es CompileErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (es CompileErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// CompileConcept parses a CUE value into a ConceptSpec. It reports every
// problem in the concept, not only the first, as CompileErrors.
//
// The CUE value should be the concept struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`concept: Cart: { ... }`)
//	spec, err := CompileConcept(v.LookupPath(cue.ParsePath("concept.Cart")))
func CompileConcept(v cue.Value) (*ir.ConceptSpec, error) {
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	c := &conceptCompiler{}
	spec := c.concept(v)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return spec, nil
}

// CompileFile compiles every concept declared under the top-level "concept"
// struct of v, in declaration order. A concept that fails to compile is
// reported in errs and skipped; the others are still returned.
func CompileFile(v cue.Value) (specs []ir.ConceptSpec, errs []error) {
	if err := v.Err(); err != nil {
		return nil, []error{fromCUE(err)}
	}

	root := v.LookupPath(cue.ParsePath("concept"))
	if !root.Exists() {
		return nil, nil
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, []error{fromCUE(err)}
	}
	for iter.Next() {
		spec, err := CompileConcept(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

// conceptCompiler accumulates errors while walking one concept.
type conceptCompiler struct {
	errs CompileErrors
}

func (c *conceptCompiler) fail(field, msg string, pos token.Pos) {
	c.errs = append(c.errs, &CompileError{Field: field, Message: msg, Pos: pos})
}

func (c *conceptCompiler) cue(field string, err error) {
	ce := fromCUE(err)
	if ce.Field == "cue" {
		ce.Field = field
	}
	c.errs = append(c.errs, ce)
}

func (c *conceptCompiler) concept(v cue.Value) *ir.ConceptSpec {
	spec := &ir.ConceptSpec{}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		spec.Name = sels[len(sels)-1].String()
	}

	if p := v.LookupPath(cue.ParsePath("purpose")); !p.Exists() {
		c.fail("purpose", "purpose is required", v.Pos())
	} else if s, err := p.String(); err != nil {
		c.cue("purpose", err)
	} else {
		spec.Purpose = s
	}

	if st := v.LookupPath(cue.ParsePath("state")); st.Exists() {
		c.each(st, "state", func(name string, tv cue.Value) {
			spec.StateSchema = append(spec.StateSchema, ir.StateSchema{
				Name:   name,
				Fields: c.fields("state."+name, tv),
			})
		})
	}

	if av := v.LookupPath(cue.ParsePath("action")); av.Exists() {
		c.each(av, "action", func(name string, a cue.Value) {
			if action, ok := c.action(name, a); ok {
				spec.Actions = append(spec.Actions, action)
			}
		})
	}
	if len(spec.Actions) == 0 && !c.has("action.") {
		c.fail("action", "at least one action is required", v.Pos())
	}
	return spec
}

func (c *conceptCompiler) has(prefix string) bool {
	for _, e := range c.errs {
		if strings.HasPrefix(e.Field, prefix) {
			return true
		}
	}
	return false
}

// each visits the fields of a struct in declaration order.
func (c *conceptCompiler) each(v cue.Value, field string, fn func(label string, v cue.Value)) {
	iter, err := v.Fields()
	if err != nil {
		c.cue(field, err)
		return
	}
	for iter.Next() {
		fn(iter.Label(), iter.Value())
	}
}

func (c *conceptCompiler) action(name string, v cue.Value) (ir.ActionSig, bool) {
	field := "action." + name
	before := len(c.errs)
	action := ir.ActionSig{Name: name}

	if args := v.LookupPath(cue.ParsePath("args")); args.Exists() {
		action.Args = c.fields(field+".args", args)
	}

	outputs := v.LookupPath(cue.ParsePath("outputs"))
	if !outputs.Exists() {
		c.fail(field+".outputs", "action outputs are required", v.Pos())
		return action, false
	}

	list, err := outputs.List()
	if err != nil {
		c.cue(field+".outputs", err)
		return action, false
	}
	for i := 0; list.Next(); i++ {
		out := list.Value()
		caseName, err := out.LookupPath(cue.ParsePath("case")).String()
		if err != nil {
			c.cue(fmt.Sprintf("%s.outputs[%d].case", field, i), err)
			continue
		}
		oc := ir.OutputCase{Case: caseName}
		if fv := out.LookupPath(cue.ParsePath("fields")); fv.Exists() {
			oc.Fields = c.fields(fmt.Sprintf("%s.outputs[%d].fields", field, i), fv)
		}
		action.Outputs = append(action.Outputs, oc)
	}

	if len(action.Outputs) == 0 && len(c.errs) == before {
		c.fail(field+".outputs", "at least one output case is required", outputs.Pos())
	}
	return action, len(c.errs) == before
}

// fields reads a struct of name: type pairs in declaration order.
func (c *conceptCompiler) fields(field string, v cue.Value) []ir.NamedArg {
	var out []ir.NamedArg
	c.each(v, field, func(name string, tv cue.Value) {
		typ, ok := c.typeName(field+"."+name, tv)
		if ok {
			out = append(out, ir.NamedArg{Name: name, Type: typ})
		}
	})
	return out
}

// typeName maps a CUE kind to an IR type name. Floats are forbidden.
func (c *conceptCompiler) typeName(field string, v cue.Value) (string, bool) {
	switch k := v.IncompleteKind(); k {
	case cue.StringKind:
		return "string", true
	case cue.IntKind:
		return "int", true
	case cue.BoolKind:
		return "bool", true
	case cue.ListKind:
		return "array", true
	case cue.StructKind:
		return "object", true
	case cue.FloatKind, cue.NumberKind:
		c.fail(field, "float types are forbidden - use int instead", v.Pos())
	default:
		c.fail(field, fmt.Sprintf("unsupported type kind: %v", k), v.Pos())
	}
	return "", false
}

// fromCUE converts the first CUE error into a positioned CompileError.
func fromCUE(err error) *CompileError {
	ce := &CompileError{Field: "cue", Message: err.Error()}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ce
	}
	ce.Message = errs[0].Error()
	if ps := cueerrors.Positions(errs[0]); len(ps) > 0 {
		ce.Pos = ps[0]
	}
	return ce
}
