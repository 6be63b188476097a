package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/workspace"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	TraceDB string
	Metrics bool
	Spans   bool
	Reports bool
}

// ConceptSummary describes one compiled concept.
type ConceptSummary struct {
	Name    string   `json:"name"`
	Source  string   `json:"source"`
	Hash    string   `json:"hash"`
	Actions []string `json:"actions"`
}

// CompileResult is the output of one compile.
type CompileResult struct {
	Files       int                    `json:"files"`
	Revision    int64                  `json:"revision"`
	Concepts    []ConceptSummary       `json:"concepts"`
	Diagnostics []workspace.Diagnostic `json:"diagnostics,omitempty"`
	Reports     []workspace.Report     `json:"reports,omitempty"`
	Recomputed  int64                  `json:"recomputed"`
	Cutoff      int64                  `json:"cutoff"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <dir>",
		Short: "Compile a directory of concept specs",
		Long: `Compile every .cue file under a directory into concept specs.

Exit codes:
  0 - Compiled without errors (warnings allowed)
  1 - Source files have errors
  2 - Command error (invalid paths, trace database, etc.)

Examples:
  derive compile ./specs
  derive compile ./specs --reports
  derive compile ./specs --db trace.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				opts.TraceDB = opts.config().TraceDB
			}
			if !cmd.Flags().Changed("metrics") {
				opts.Metrics = opts.config().Metrics
			}
			if !cmd.Flags().Changed("spans") {
				opts.Spans = opts.config().Spans
			}
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TraceDB, "db", "", "record the query trace in this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print query metrics to stderr on exit")
	cmd.Flags().BoolVar(&opts.Spans, "spans", false, "print compile spans to stderr")
	cmd.Flags().BoolVar(&opts.Reports, "reports", false, "include a report for every concept")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, dir string, cmd *cobra.Command) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	if err := checkDir(dir); err != nil {
		return reportLoadError(f, err)
	}

	s, err := openSession(ctx, opts.RootOptions, sessionOptions{
		Label:   "compile " + dir,
		TraceDB: opts.TraceDB,
		Metrics: opts.Metrics,
		Spans:   opts.Spans,
		Out:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return reportLoadError(f, err)
	}
	defer func() {
		if cerr := s.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "close session", cerr)
		}
	}()
	f.Session = s.sessionID()

	ws := workspace.New(s.rt, dir, s.workspaceOptions()...)
	n, err := ws.LoadDir(ctx, os.DirFS(dir))
	if err != nil {
		return WrapExitError(ExitCommandError, "load workspace", err)
	}
	f.VerboseLog("loaded %d file(s) from %s", n, dir)

	result, idx, err := compileWorkspace(ctx, ws, s, opts.Reports)
	if err != nil {
		return WrapExitError(ExitFailure, "compile", err)
	}

	if idx.HasErrors() {
		return outputCompileErrors(f, result)
	}
	return f.Success(result, formatCompileText(result))
}

// compileWorkspace runs one compile and gathers the result, including the
// engine work it took.
func compileWorkspace(ctx context.Context, ws *workspace.Workspace, s *session, reports bool) (CompileResult, workspace.Index, error) {
	idx, err := ws.Compile(ctx)
	if err != nil {
		return CompileResult{}, workspace.Index{}, err
	}

	result := CompileResult{
		Files:       len(idx.Files),
		Revision:    int64(s.rt.Revision()),
		Concepts:    make([]ConceptSummary, 0, len(idx.Names)),
		Diagnostics: idx.Diagnostics,
	}
	for _, name := range idx.Names {
		spec := idx.Concepts[name]
		hash, err := ir.ConceptHash(spec)
		if err != nil {
			return CompileResult{}, workspace.Index{}, fmt.Errorf("hash concept %s: %w", name, err)
		}
		result.Concepts = append(result.Concepts, ConceptSummary{
			Name:    name,
			Source:  spec.Source,
			Hash:    hash,
			Actions: spec.ActionNames(),
		})

		if reports {
			r, err := ws.Report(ctx, name)
			if err != nil {
				return CompileResult{}, workspace.Index{}, err
			}
			result.Reports = append(result.Reports, r)
		}
	}

	result.Recomputed = s.counts.recomputed.Load()
	result.Cutoff = s.counts.cutoff.Load()
	return result, idx, nil
}

func outputCompileErrors(f *OutputFormatter, result CompileResult) error {
	if f.IsJSON() {
		_ = f.Error(ErrCodeCompileFailed, "compilation failed", result.Diagnostics)
	} else {
		fmt.Fprintln(f.Writer, "✗ Compilation failed")
		for _, d := range result.Diagnostics {
			fmt.Fprintf(f.Writer, "  %s\n", d)
		}
	}
	return NewExitError(ExitFailure, "compilation failed")
}

func formatCompileText(result CompileResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Compiled %d concept(s) from %d file(s)\n", len(result.Concepts), result.Files)
	for _, c := range result.Concepts {
		fmt.Fprintf(&b, "  %s (%s) %s\n", c.Name, c.Source, c.Hash)
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	for _, r := range result.Reports {
		b.WriteString(r.Text())
	}
	return b.String()
}
