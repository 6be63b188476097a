package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/watch"
)

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "derive.yaml", `
trace_db: /tmp/trace.db
debounce: 250ms
cycle_detection: false
max_depth: 64
metrics: true
spans: true
`)

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/trace.db", cfg.TraceDB)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.False(t, cfg.CycleDetectionEnabled())
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.True(t, cfg.Metrics)
	assert.True(t, cfg.Spans)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "derive.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, watch.DefaultDebounce, cfg.Debounce)
	assert.True(t, cfg.CycleDetectionEnabled())
	assert.Empty(t, cfg.TraceDB)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "derive.yaml", "")
	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, watch.DefaultDebounce, cfg.Debounce)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "trace_database: x.db\n"},
		{"bad duration", "debounce: soon\n"},
		{"negative depth", "max_depth: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "derive.yaml", tt.content)
			_, err := LoadConfig(path, true)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}
