package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
)

// Workspace is an incremental compiler over the .cue files under one root.
//
// Thread-safety: all methods are safe for concurrent use.
type Workspace struct {
	rt     *engine.Runtime
	root   string
	logger *slog.Logger
	tracer trace.Tracer
	newID  func() (string, error)

	mu    sync.Mutex
	files map[string]bool

	manifest    *engine.Input[string, []string]
	sources     *engine.Input[string, string]
	fingerprint *engine.Derived[string, engine.Optional[uint64]]
	parsed      *engine.Derived[string, ParseResult]
	concepts    *engine.Derived[string, FileConcepts]
	index       *engine.Singleton[Index]
	concept     *engine.Derived[string, engine.Optional[ir.ConceptSpec]]
	report      *engine.Derived[string, Report]
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithIDGenerator replaces the UUIDv7 generator used for report build IDs.
func WithIDGenerator(gen func() string) Option {
	return func(w *Workspace) {
		w.newID = func() (string, error) { return gen(), nil }
	}
}

// WithTracerProvider sets the provider for compile spans. The default is
// the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *Workspace) {
		w.tracer = tp.Tracer(tracerName)
	}
}

const tracerName = "github.com/roach88/derive/internal/workspace"

// New creates an empty workspace whose queries live in rt.
func New(rt *engine.Runtime, root string, opts ...Option) *Workspace {
	w := &Workspace{
		rt:     rt,
		root:   root,
		logger: rt.Logger().With("workspace", root),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		newID:  newBuildID,
		files:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.manifest = engine.NewInput[string, []string](rt, "manifest")
	w.sources = engine.NewInput[string, string](rt, "sources")
	w.fingerprint = engine.Compute1(rt, "fingerprint", engine.Same(w.sources), computeFingerprint)
	w.parsed = engine.Eager1(rt, "parsed", engine.Same(w.sources), parseSource)
	w.concepts = engine.Compute1(rt, "concepts", engine.Same(w.parsed), compileParsed)
	w.index = engine.NewSingleton(rt, "index", w.buildIndex)
	w.concept = engine.Compute1(rt, "concept", engine.Global[string](w.index), lookupConcept)
	w.report = engine.Eager1(rt, "report", engine.Same(w.concept), w.buildReport)

	w.manifest.Set(root, nil)
	return w
}

func newBuildID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate build id: %w", err)
	}
	return id.String(), nil
}

// Root returns the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Runtime returns the engine runtime holding the workspace's queries.
func (w *Workspace) Runtime() *engine.Runtime {
	return w.rt
}

// Files returns the manifest in sorted order.
func (w *Workspace) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sortedFilesLocked()
}

func (w *Workspace) sortedFilesLocked() []string {
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// SetFile writes the text of path, adding it to the manifest if needed.
func (w *Workspace) SetFile(path, text string) engine.Revision {
	return w.setFile(context.Background(), path, text)
}

func (w *Workspace) setFile(ctx context.Context, path, text string) engine.Revision {
	w.mu.Lock()
	defer w.mu.Unlock()

	rev := w.sources.SetContext(ctx, path, text)
	if !w.files[path] {
		w.files[path] = true
		rev = w.manifest.SetContext(ctx, w.root, w.sortedFilesLocked())
	}
	return rev
}

// SyncFile writes text only when its fingerprint differs from the current
// source of path. It reports whether a write happened.
func (w *Workspace) SyncFile(ctx context.Context, path, text string) (bool, error) {
	fp, ok, err := w.Fingerprint(ctx, path)
	if err != nil {
		return false, err
	}
	if ok && fp == ir.Fingerprint(text) {
		return false, nil
	}
	w.setFile(ctx, path, text)
	return true, nil
}

// RemoveFile removes path from the workspace.
func (w *Workspace) RemoveFile(path string) engine.Revision {
	return w.RemoveFileContext(context.Background(), path)
}

// RemoveFileContext is RemoveFile with the context handed to observers.
func (w *Workspace) RemoveFileContext(ctx context.Context, path string) engine.Revision {
	w.mu.Lock()
	defer w.mu.Unlock()

	rev := w.sources.RemoveContext(ctx, path)
	if w.files[path] {
		delete(w.files, path)
		rev = w.manifest.SetContext(ctx, w.root, w.sortedFilesLocked())
	}
	return rev
}

// Fingerprint returns the fingerprint of the current source of path.
func (w *Workspace) Fingerprint(ctx context.Context, path string) (uint64, bool, error) {
	entry, err := w.fingerprint.Get(ctx, path)
	if err != nil {
		return 0, false, err
	}
	fp, ok := entry.Value.Get()
	return fp, ok, nil
}

// Parsed returns the parse result of path.
func (w *Workspace) Parsed(ctx context.Context, path string) (ParseResult, error) {
	entry, err := w.parsed.Get(ctx, path)
	return entry.Value, err
}

// FileConcepts returns the concepts compiled from path.
func (w *Workspace) FileConcepts(ctx context.Context, path string) (FileConcepts, error) {
	entry, err := w.concepts.Get(ctx, path)
	return entry.Value, err
}

// Compile brings every file up to date, compiling files concurrently, and
// returns the merged index.
func (w *Workspace) Compile(ctx context.Context) (idx Index, err error) {
	ctx, span := w.tracer.Start(ctx, "workspace.compile", trace.WithAttributes(
		attribute.String("workspace.root", w.root),
		attribute.Int64("revision", int64(w.rt.Revision())),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	files := w.Files()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, f := range files {
		g.Go(func() error {
			_, err := w.concepts.Get(gctx, f)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Index{}, err
	}

	entry, err := w.index.Get(ctx)
	if err != nil {
		return Index{}, err
	}
	span.SetAttributes(
		attribute.Int("files", len(entry.Value.Files)),
		attribute.Int("concepts", len(entry.Value.Names)),
		attribute.Int("diagnostics", len(entry.Value.Diagnostics)),
	)
	w.logger.Debug("workspace compiled",
		"files", len(entry.Value.Files),
		"concepts", len(entry.Value.Names),
		"diagnostics", len(entry.Value.Diagnostics),
		"revision", entry.Changed,
	)
	return entry.Value, nil
}

// Concept returns the compiled concept with the given name.
func (w *Workspace) Concept(ctx context.Context, name string) (ir.ConceptSpec, bool, error) {
	entry, err := w.concept.Get(ctx, name)
	if err != nil {
		return ir.ConceptSpec{}, false, err
	}
	spec, ok := entry.Value.Get()
	return spec, ok, nil
}

// Report returns the report for the named concept.
func (w *Workspace) Report(ctx context.Context, name string) (Report, error) {
	entry, err := w.report.Get(ctx, name)
	return entry.Value, err
}
