package workspace

import (
	"context"
	"fmt"
	"slices"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/parser"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
)

func computeFingerprint(_ context.Context, _ string, src engine.Optional[string]) (engine.Optional[uint64], error) {
	text, ok := src.Get()
	if !ok {
		return engine.None[uint64](), nil
	}
	return engine.Some(ir.Fingerprint(text)), nil
}

func parseSource(_ context.Context, path string, src engine.Optional[string]) (ParseResult, error) {
	text, ok := src.Get()
	if !ok {
		return ParseResult{Path: path, Missing: true}, nil
	}

	f, err := parser.ParseFile(path, text, parser.ParseComments)
	if err != nil {
		return ParseResult{Path: path, Diagnostics: diagnosticsFromError(path, err)}, nil
	}
	return ParseResult{Path: path, File: f}, nil
}

// compileParsed builds the parsed file in a fresh CUE context; contexts are
// not shared across goroutines.
func compileParsed(_ context.Context, path string, parsed ParseResult) (FileConcepts, error) {
	out := FileConcepts{Diagnostics: parsed.Diagnostics}
	if parsed.File == nil {
		return out, nil
	}

	v := cuecontext.New().BuildFile(parsed.File)
	if err := v.Err(); err != nil {
		out.Diagnostics = append(out.Diagnostics, diagnosticsFromError(path, err)...)
		return out, nil
	}

	specs, errs := compiler.CompileFile(v)
	for _, err := range errs {
		out.Diagnostics = append(out.Diagnostics, diagnosticsFromError(path, err)...)
	}
	for _, spec := range specs {
		spec.Source = path
		for _, verr := range compiler.Validate(&spec) {
			out.Diagnostics = append(out.Diagnostics, Diagnostic{
				File:     path,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("concept %s: %s", spec.Name, verr.Error()),
			})
		}
		out.Concepts = append(out.Concepts, spec)
	}
	return out, nil
}

// buildIndex merges every file's concepts. When a name is declared twice the
// file that sorts first wins and the other declaration is reported.
func (w *Workspace) buildIndex(ctx context.Context) (Index, error) {
	files, _, err := w.manifest.Value(ctx, w.root)
	if err != nil {
		return Index{}, err
	}

	idx := Index{
		Files:    slices.Clone(files),
		Concepts: make(map[string]ir.ConceptSpec),
	}
	for _, f := range files {
		entry, err := w.concepts.Get(ctx, f)
		if err != nil {
			return Index{}, err
		}
		fc := entry.Value
		idx.Diagnostics = append(idx.Diagnostics, fc.Diagnostics...)

		for _, spec := range fc.Concepts {
			if prev, dup := idx.Concepts[spec.Name]; dup {
				idx.Diagnostics = append(idx.Diagnostics, Diagnostic{
					File:     f,
					Severity: SeverityError,
					Message:  fmt.Sprintf("concept %s already declared in %s", spec.Name, prev.Source),
				})
				continue
			}
			idx.Concepts[spec.Name] = spec
			idx.Names = append(idx.Names, spec.Name)
		}
	}
	slices.Sort(idx.Names)
	return idx, nil
}

func lookupConcept(_ context.Context, name string, idx Index) (engine.Optional[ir.ConceptSpec], error) {
	spec, ok := idx.Concepts[name]
	if !ok {
		return engine.None[ir.ConceptSpec](), nil
	}
	return engine.Some(spec), nil
}

func (w *Workspace) buildReport(_ context.Context, name string, c engine.Optional[ir.ConceptSpec]) (Report, error) {
	id, err := w.newID()
	if err != nil {
		return Report{}, err
	}

	r := Report{BuildID: id, Concept: name}
	spec, ok := c.Get()
	if !ok {
		return r, nil
	}

	hash, err := ir.ConceptHash(spec)
	if err != nil {
		return Report{}, err
	}
	r.Found = true
	r.Source = spec.Source
	r.Hash = hash
	r.Purpose = spec.Purpose
	r.Actions = spec.ActionNames()
	for _, s := range spec.StateSchema {
		r.States = append(r.States, s.Name)
	}
	return r, nil
}
