package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/watch"
	"github.com/roach88/derive/internal/workspace"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	TraceDB  string
	Metrics  bool
	Spans    bool
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Recompile a directory of concept specs on every change",
		Long: `Compile a directory, then keep recompiling it as files change.

Edits that leave a file's meaning unchanged (comments, whitespace) stop at
that file: nothing downstream is recompiled. Stop with Ctrl-C.

Examples:
  derive watch ./specs
  derive watch ./specs --debounce 250ms --db trace.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config()
			if !cmd.Flags().Changed("db") {
				opts.TraceDB = cfg.TraceDB
			}
			if !cmd.Flags().Changed("metrics") {
				opts.Metrics = cfg.Metrics
			}
			if !cmd.Flags().Changed("spans") {
				opts.Spans = cfg.Spans
			}
			if !cmd.Flags().Changed("debounce") {
				opts.Debounce = cfg.Debounce
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TraceDB, "db", "", "record the query trace in this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print query metrics to stderr on exit")
	cmd.Flags().BoolVar(&opts.Spans, "spans", false, "print compile spans to stderr")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet period before recompiling")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, dir string, cmd *cobra.Command) (err error) {
	f := opts.formatter(cmd)
	logger := opts.logger()

	if err := checkDir(dir); err != nil {
		return reportLoadError(f, err)
	}

	s, err := openSession(ctx, opts.RootOptions, sessionOptions{
		Label:   "watch " + dir,
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

	// Watch before the first load so no edit falls between the two.
	w, err := watch.New(dir, opts.Debounce, workspace.IsSourceFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "watch "+dir, err)
	}
	defer w.Close()

	ws := workspace.New(s.rt, dir, s.workspaceOptions()...)
	if _, err := ws.LoadDir(ctx, os.DirFS(dir)); err != nil {
		return WrapExitError(ExitCommandError, "load workspace", err)
	}
	if err := recompile(ctx, f, ws, s); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("watch stopped", "revision", s.rt.Revision())
			return nil

		case err := <-w.Errors():
			logger.Warn("watcher error", "error", err)

		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			changed := applyBatch(ctx, ws, dir, batch, logger)
			if changed == 0 {
				logger.Debug("no source changes", "files", batch)
				continue
			}
			f.VerboseLog("%d file(s) changed", changed)
			if err := recompile(ctx, f, ws, s); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// applyBatch feeds changed files into the workspace and returns how many
// sources were actually written or removed.
func applyBatch(ctx context.Context, ws *workspace.Workspace, dir string, batch []string, logger *slog.Logger) int {
	known := ws.Files()
	changed := 0
	for _, rel := range batch {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if errors.Is(err, fs.ErrNotExist) {
			if slices.Contains(known, rel) {
				ws.RemoveFileContext(ctx, rel)
				changed++
			}
			continue
		}
		if err != nil {
			logger.Warn("read failed", "file", rel, "error", err)
			continue
		}
		wrote, err := ws.SyncFile(ctx, rel, string(data))
		if err != nil {
			logger.Warn("sync failed", "file", rel, "error", err)
			continue
		}
		if wrote {
			changed++
		}
	}
	return changed
}

// recompile runs one compile and prints its result. Compile diagnostics are
// printed but do not stop the watch.
func recompile(ctx context.Context, f *OutputFormatter, ws *workspace.Workspace, s *session) error {
	s.counts.reset()
	result, idx, err := compileWorkspace(ctx, ws, s, false)
	if err != nil {
		return WrapExitError(ExitFailure, "compile", err)
	}

	if idx.HasErrors() {
		_ = outputCompileErrors(f, result)
		return nil
	}
	if err := f.Success(result, formatCompileText(result)); err != nil {
		return err
	}
	f.Textf("  revision %d: %d recomputed, %d cut off", result.Revision, result.Recomputed, result.Cutoff)
	return nil
}
