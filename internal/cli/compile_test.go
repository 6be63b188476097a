package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCompile(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileValidSpecs(t *testing.T) {
	out, err := executeCompile(t, &RootOptions{Format: "text"}, specDir(t))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 concept(s) from 2 file(s)")
	assert.Contains(t, out, "Cart (cart.cue)")
	assert.Contains(t, out, "Inventory (nested/inventory.cue)")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	out, err := executeCompile(t, &RootOptions{Format: "json"}, specDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Files)
	require.Len(t, resp.Data.Concepts, 2)
	assert.Equal(t, "Cart", resp.Data.Concepts[0].Name)
	assert.Equal(t, []string{"add"}, resp.Data.Concepts[0].Actions)
	assert.Len(t, resp.Data.Concepts[0].Hash, 16)
	assert.Positive(t, resp.Data.Recomputed)
}

func TestCompileReports(t *testing.T) {
	out, err := executeCompile(t, &RootOptions{Format: "text"}, specDir(t), "--reports")
	require.NoError(t, err)

	assert.Contains(t, out, "purpose: hold items before checkout")
	assert.Contains(t, out, "actions: add")
}

func TestCompileErrorsExitFailure(t *testing.T) {
	dir := specDir(t)
	writeFile(t, dir, "broken.cue", "concept: Broken: {\n")

	out, err := executeCompile(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "broken.cue")
}

func TestCompileErrorsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", conceptSource("Cart", "one"))
	writeFile(t, dir, "b.cue", conceptSource("Cart", "two"))

	out, err := executeCompile(t, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompileFailed, resp.Error.Code)
	assert.Contains(t, out, "already declared in a.cue")
}

func TestCompileMissingDirectory(t *testing.T) {
	out, err := executeCompile(t, &RootOptions{Format: "text"}, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestCompileNotADirectory(t *testing.T) {
	file := writeFile(t, t.TempDir(), "spec.cue", conceptSource("Cart", "x"))
	out, err := executeCompile(t, &RootOptions{Format: "text"}, file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestCompileRecordsTrace(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	out, err := executeCompile(t, &RootOptions{Format: "json"}, specDir(t), "--db", db)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Session)

	traceOut, err := executeTrace(t, &RootOptions{Format: "text"}, "--db", db, "--session", resp.Session)
	require.NoError(t, err)
	assert.Contains(t, traceOut, "Session "+resp.Session)
	assert.Contains(t, traceOut, "set")
	assert.Contains(t, traceOut, "concepts[cart.cue]")
}

func TestCompileWithMetrics(t *testing.T) {
	errOut := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{specDir(t), "--metrics"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "derive.query.events")
}

func TestCompileWithSpans(t *testing.T) {
	errOut := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{specDir(t), "--spans"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "workspace.compile")
	assert.Contains(t, errOut.String(), "workspace.load")
	assert.Contains(t, errOut.String(), "engine.recomputed")
}
