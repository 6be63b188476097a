package workspace

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/ast"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/ir"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a problem found in a source file.
type Diagnostic struct {
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, d.Severity, d.Message)
}

// ParseResult is the outcome of parsing one file. File is nil when the
// source is missing or did not parse.
type ParseResult struct {
	Path        string
	File        *ast.File
	Missing     bool
	Diagnostics []Diagnostic
}

// FileConcepts are the concepts compiled from one file.
type FileConcepts struct {
	Concepts    []ir.ConceptSpec `json:"concepts"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
}

// Index merges the concepts of every file in the manifest.
type Index struct {
	Files       []string                  `json:"files"`
	Names       []string                  `json:"names"`
	Concepts    map[string]ir.ConceptSpec `json:"concepts"`
	Diagnostics []Diagnostic              `json:"diagnostics,omitempty"`
}

// HasErrors reports whether any diagnostic is an error.
func (idx Index) HasErrors() bool {
	for _, d := range idx.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Report summarizes one concept. Every recomputation gets a fresh BuildID.
type Report struct {
	BuildID string   `json:"build_id"`
	Concept string   `json:"concept"`
	Found   bool     `json:"found"`
	Source  string   `json:"source,omitempty"`
	Hash    string   `json:"hash,omitempty"`
	Purpose string   `json:"purpose,omitempty"`
	States  []string `json:"states,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// Text renders the report as a short human-readable block.
func (r Report) Text() string {
	if !r.Found {
		return fmt.Sprintf("%s: not found (build %s)\n", r.Concept, r.BuildID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) hash=%s build=%s\n", r.Concept, r.Source, r.Hash, r.BuildID)
	fmt.Fprintf(&b, "  purpose: %s\n", r.Purpose)
	if len(r.States) > 0 {
		fmt.Fprintf(&b, "  states:  %s\n", strings.Join(r.States, ", "))
	}
	fmt.Fprintf(&b, "  actions: %s\n", strings.Join(r.Actions, ", "))
	return b.String()
}

// diagnosticsFromError turns a parse or compile error into diagnostics.
func diagnosticsFromError(path string, err error) []Diagnostic {
	var ces compiler.CompileErrors
	if errors.As(err, &ces) {
		out := make([]Diagnostic, 0, len(ces))
		for _, ce := range ces {
			out = append(out, newDiagnostic(path, ce.Pos, ce.Field+": "+ce.Message))
		}
		return out
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return []Diagnostic{newDiagnostic(path, ce.Pos, ce.Field+": "+ce.Message)}
	}

	var out []Diagnostic
	for _, e := range cueerrors.Errors(err) {
		var pos token.Pos
		if ps := cueerrors.Positions(e); len(ps) > 0 {
			pos = ps[0]
		}
		out = append(out, newDiagnostic(path, pos, e.Error()))
	}
	if len(out) == 0 {
		out = append(out, Diagnostic{File: path, Severity: SeverityError, Message: err.Error()})
	}
	return out
}

func newDiagnostic(path string, pos token.Pos, msg string) Diagnostic {
	d := Diagnostic{File: path, Severity: SeverityError, Message: msg}
	if pos.IsValid() {
		d.Line = pos.Line()
		d.Column = pos.Column()
	}
	return d
}
