package workspace_test

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/observe"
	"github.com/roach88/derive/internal/testutil"
	"github.com/roach88/derive/internal/workspace"
)

func conceptSource(name, purpose, extra string) string {
	return fmt.Sprintf(`%s
concept: %s: {
	purpose: %q
	state: Item: { id: string }
	action: add: {
		args: { id: string }
		outputs: [{ case: "Success" }, { case: "Duplicate", fields: { id: string } }]
	}
}
`, extra, name, purpose)
}

type fixture struct {
	ws  *workspace.Workspace
	rec *testutil.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rec := testutil.NewRecorder()
	rt := engine.New(engine.WithObserver(rec))
	ids := testutil.NewSequentialIDs("build")
	return fixture{
		ws:  workspace.New(rt, "specs", workspace.WithIDGenerator(ids.Generate)),
		rec: rec,
	}
}

func TestCompileIndexesConcepts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))
	f.ws.SetFile("stock.cue", conceptSource("Stock", "Tracks stock", ""))

	idx, err := f.ws.Compile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"cart.cue", "stock.cue"}, idx.Files)
	assert.Equal(t, []string{"Cart", "Stock"}, idx.Names)
	assert.Empty(t, idx.Diagnostics)
	assert.False(t, idx.HasErrors())

	spec, ok, err := f.ws.Concept(ctx, "Cart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Manages carts", spec.Purpose)
	assert.Equal(t, "cart.cue", spec.Source)
	assert.Equal(t, []string{"add"}, spec.ActionNames())
}

func TestCommentEditIsCutOff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))
	f.ws.SetFile("stock.cue", conceptSource("Stock", "Tracks stock", ""))

	_, err := f.ws.Compile(ctx)
	require.NoError(t, err)
	first, err := f.ws.Report(ctx, "Cart")
	require.NoError(t, err)
	assert.Equal(t, "build-1", first.BuildID)

	f.rec.Reset()
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", "// carts are per session"))

	again, err := f.ws.Report(ctx, "Cart")
	require.NoError(t, err)
	assert.Equal(t, "build-1", again.BuildID, "report must not rebuild for a comment edit")

	assert.Equal(t, 1, f.rec.Count("parsed", engine.EventRecomputed))
	assert.Equal(t, 1, f.rec.Count("concepts", engine.EventCutoff))
	assert.Equal(t, 1, f.rec.Count("concept", engine.EventCutoff))
	assert.Equal(t, 0, f.rec.Count("report", engine.EventRecomputed))
	assert.Equal(t, 1, f.rec.Count("report", engine.EventRevalidated))
}

func TestSemanticEditRebuildsReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))
	f.ws.SetFile("stock.cue", conceptSource("Stock", "Tracks stock", ""))

	_, err := f.ws.Report(ctx, "Cart")
	require.NoError(t, err)
	stock, err := f.ws.Report(ctx, "Stock")
	require.NoError(t, err)

	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages shopping carts", ""))

	cart, err := f.ws.Report(ctx, "Cart")
	require.NoError(t, err)
	assert.Equal(t, "build-3", cart.BuildID)
	assert.Equal(t, "Manages shopping carts", cart.Purpose)

	stockAgain, err := f.ws.Report(ctx, "Stock")
	require.NoError(t, err)
	assert.Equal(t, stock.BuildID, stockAgain.BuildID, "unrelated concept keeps its report")
}

func TestReportContents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))

	r, err := f.ws.Report(ctx, "Cart")
	require.NoError(t, err)
	assert.True(t, r.Found)
	assert.Equal(t, "cart.cue", r.Source)
	assert.Len(t, r.Hash, 16)
	assert.Equal(t, []string{"Item"}, r.States)
	assert.Equal(t, []string{"add"}, r.Actions)
	assert.Contains(t, r.Text(), "actions: add")

	missing, err := f.ws.Report(ctx, "Nope")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Contains(t, missing.Text(), "not found")
}

func TestDiagnosticsAreCachedValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("broken.cue", "concept: {\n")
	f.ws.SetFile("nopurpose.cue", `concept: Bad: { action: a: { outputs: [{ case: "Success" }] } }`)

	idx, err := f.ws.Compile(ctx)
	require.NoError(t, err)
	assert.Empty(t, idx.Names)
	assert.True(t, idx.HasErrors())
	require.NotEmpty(t, idx.Diagnostics)
	assert.Equal(t, "broken.cue", idx.Diagnostics[0].File)
	assert.Equal(t, workspace.SeverityError, idx.Diagnostics[0].Severity)
	last := idx.Diagnostics[len(idx.Diagnostics)-1]
	assert.Equal(t, "nopurpose.cue", last.File)
	assert.Contains(t, last.Message, "purpose is required")

	parsed, err := f.ws.Parsed(ctx, "broken.cue")
	require.NoError(t, err)
	assert.Nil(t, parsed.File)
	assert.NotEmpty(t, parsed.Diagnostics)

	f.rec.Reset()
	_, err = f.ws.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.rec.Count("concepts", engine.EventRecomputed))
	assert.Equal(t, 0, f.rec.Count("concepts", engine.EventFailed))
}

func TestDuplicateConceptNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("a.cue", conceptSource("Cart", "first", ""))
	f.ws.SetFile("b.cue", conceptSource("Cart", "second", ""))

	idx, err := f.ws.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cart"}, idx.Names)
	require.Len(t, idx.Diagnostics, 1)
	assert.Equal(t, "b.cue", idx.Diagnostics[0].File)
	assert.Contains(t, idx.Diagnostics[0].Message, "already declared in a.cue")

	spec, _, err := f.ws.Concept(ctx, "Cart")
	require.NoError(t, err)
	assert.Equal(t, "first", spec.Purpose)
}

func TestValidationWarnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("odd.cue", `concept: "bad-name": { purpose: "p", action: a: { outputs: [{ case: "Success" }] } }`)

	idx, err := f.ws.Compile(ctx)
	require.NoError(t, err)
	assert.Len(t, idx.Names, 1)
	require.Len(t, idx.Diagnostics, 1)
	assert.Equal(t, workspace.SeverityWarning, idx.Diagnostics[0].Severity)
	assert.Contains(t, idx.Diagnostics[0].Message, "invalid concept name")
	assert.False(t, idx.HasErrors())
}

func TestRemoveFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))
	f.ws.SetFile("stock.cue", conceptSource("Stock", "Tracks stock", ""))

	_, ok, err := f.ws.Concept(ctx, "Stock")
	require.NoError(t, err)
	require.True(t, ok)

	f.ws.RemoveFile("stock.cue")
	assert.Equal(t, []string{"cart.cue"}, f.ws.Files())

	_, ok, err = f.ws.Concept(ctx, "Stock")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.ws.Fingerprint(ctx, "stock.cue")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncFileSkipsIdenticalText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := conceptSource("Cart", "Manages carts", "")

	wrote, err := f.ws.SyncFile(ctx, "cart.cue", src)
	require.NoError(t, err)
	assert.True(t, wrote)

	rev := f.ws.Runtime().Revision()
	wrote, err = f.ws.SyncFile(ctx, "cart.cue", src)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, rev, f.ws.Runtime().Revision())

	wrote, err = f.ws.SyncFile(ctx, "cart.cue", src+"\n")
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestLoadDir(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fsys := fstest.MapFS{
		"cart.cue":        {Data: []byte(conceptSource("Cart", "Manages carts", ""))},
		"inv/stock.cue":   {Data: []byte(conceptSource("Stock", "Tracks stock", ""))},
		".cache/skip.cue": {Data: []byte("garbage {")},
		"README.md":       {Data: []byte("# specs")},
	}

	n, err := f.ws.LoadDir(ctx, fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"cart.cue", "inv/stock.cue"}, f.ws.Files())

	idx, err := f.ws.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cart", "Stock"}, idx.Names)

	delete(fsys, "inv/stock.cue")
	rev := f.ws.Runtime().Revision()
	n, err = f.ws.LoadDir(ctx, fsys)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"cart.cue"}, f.ws.Files())
	assert.Greater(t, f.ws.Runtime().Revision(), rev)

	idx, err = f.ws.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cart"}, idx.Names)
}

func TestCompileCancelled(t *testing.T) {
	f := newFixture(t)
	f.ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ws.Compile(ctx)
	require.Error(t, err)
}

func TestIsSourceFile(t *testing.T) {
	assert.True(t, workspace.IsSourceFile("a/b.cue"))
	assert.False(t, workspace.IsSourceFile("a/.b.cue"))
	assert.False(t, workspace.IsSourceFile("a/b.json"))
}

func TestCompileSpan(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	rt := engine.New(engine.WithObserver(observe.NewSpanObserver()))
	ws := workspace.New(rt, "specs", workspace.WithTracerProvider(tp))

	ws.SetFile("cart.cue", conceptSource("Cart", "Manages carts", ""))
	_, err := ws.Compile(context.Background())
	require.NoError(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "workspace.compile", span.Name())
	assert.NotEqual(t, codes.Error, span.Status().Code)

	var names []string
	for _, e := range span.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "engine.recomputed")

	ws.SetFile("user.cue", conceptSource("User", "Registers users", ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ws.Compile(ctx)
	require.Error(t, err)
	ended = spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestLoadSpanHoldsInputWrites(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	rt := engine.New(engine.WithObserver(observe.NewSpanObserver()))
	ws := workspace.New(rt, "specs", workspace.WithTracerProvider(tp))
	ws.SetFile("stale.cue", conceptSource("Stale", "Goes away", ""))

	fsys := fstest.MapFS{
		"cart.cue": {Data: []byte(conceptSource("Cart", "Manages carts", ""))},
	}
	_, err := ws.LoadDir(context.Background(), fsys)
	require.NoError(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "workspace.load", ended[0].Name())

	counts := map[string]int{}
	for _, e := range ended[0].Events() {
		counts[e.Name]++
	}
	assert.Equal(t, 3, counts["engine.set"], "cart.cue source and two manifest writes")
	assert.Equal(t, 1, counts["engine.remove"], "stale.cue source")
}

func TestEveryCompileErrorIsADiagnostic(t *testing.T) {
	f := newFixture(t)
	f.ws.SetFile("bad.cue", `concept: Bad: {
	state: S: { price: float }
	action: a: { args: { n: string } }
}
`)

	idx, err := f.ws.Compile(context.Background())
	require.NoError(t, err)
	require.Len(t, idx.Diagnostics, 3)
	assert.Contains(t, idx.Diagnostics[0].Message, "purpose is required")
	assert.Contains(t, idx.Diagnostics[1].Message, "state.S.price")
	assert.Equal(t, 2, idx.Diagnostics[1].Line)
	assert.Contains(t, idx.Diagnostics[2].Message, "action.a.outputs")
}
