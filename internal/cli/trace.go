package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DBPath  string
	Session string
	Query   string
	Key     string
	Kinds   []string
}

// TraceResult is the output of the trace command for one session.
type TraceResult struct {
	Session string         `json:"session"`
	Events  []store.Record `json:"events"`
	Stats   store.Stats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded query traces",
		Long: `Show query traces recorded with --db.

Without --session, lists the recorded sessions. With --session, prints that
session's events in order followed by counts per event kind.

Examples:
  derive trace --db trace.db
  derive trace --db trace.db --session 0190c5a4-...
  derive trace --db trace.db --session 0190c5a4-... --query concepts --kind cutoff`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				opts.DBPath = opts.config().TraceDB
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runTrace(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the trace database")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to print")
	cmd.Flags().StringVar(&opts.Query, "query", "", "only print events of this query")
	cmd.Flags().StringVar(&opts.Key, "key", "", "only print events for this key")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only print events of these kinds (repeatable)")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.DBPath == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	if _, err := os.Stat(opts.DBPath); os.IsNotExist(err) {
		return reportLoadError(f, &LoadError{Code: ErrCodeNotFound, Message: "trace database not found", Path: opts.DBPath})
	}

	st, err := store.OpenReadOnly(ctx, opts.DBPath)
	if err != nil {
		return reportLoadError(f, &LoadError{Code: ErrCodeTraceDB, Message: err.Error(), Path: opts.DBPath})
	}
	defer st.Close()

	sessions, err := st.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read sessions", err)
	}

	if opts.Session == "" {
		return f.Success(sessions, formatSessions(sessions))
	}

	if !slices.ContainsFunc(sessions, func(s store.Session) bool { return s.ID == opts.Session }) {
		_ = f.Error(ErrCodeSessionNotFound, "session not found", map[string]string{"session": opts.Session})
		return NewExitError(ExitCommandError, "session not found: "+opts.Session)
	}

	filter := store.Filter{Query: opts.Query, Key: opts.Key}
	for _, k := range opts.Kinds {
		filter.Kinds = append(filter.Kinds, engine.EventKind(k))
	}
	events, err := st.QueryEvents(ctx, opts.Session, filter.Predicate())
	if err != nil {
		return WrapExitError(ExitCommandError, "read events", err)
	}

	stats, err := st.Stats(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "read stats", err)
	}

	result := TraceResult{Session: opts.Session, Events: events, Stats: stats}
	return f.Success(result, formatTrace(result))
}

func formatSessions(sessions []store.Session) string {
	if len(sessions) == 0 {
		return "No sessions recorded.\n"
	}
	var b strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&b, "%s  %5d events  %s\n", s.ID, s.Events, s.Label)
	}
	return b.String()
}

func formatTrace(result TraceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", result.Session)
	for _, r := range result.Events {
		fmt.Fprintf(&b, "%5d  r%-4d %-12s %s", r.Seq, r.Revision, r.Kind, r.Query)
		if r.Key != "" {
			fmt.Fprintf(&b, "[%s]", r.Key)
		}
		if r.Kind != engine.EventSet && r.Kind != engine.EventRemove {
			fmt.Fprintf(&b, " changed=%d checked=%d", r.Changed, r.Checked)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, " error=%q", r.Error)
		}
		b.WriteByte('\n')
	}

	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, result.Stats.ByKind[engine.EventKind(k)]))
	}
	fmt.Fprintf(&b, "%d events: %s\n", result.Stats.Total, strings.Join(parts, " "))
	return b.String()
}
