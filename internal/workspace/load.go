package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// LoadDir replaces the workspace contents with every .cue file in fsys.
// Files that are no longer present are removed. It returns the number of
// files loaded.
func (w *Workspace) LoadDir(ctx context.Context, fsys fs.FS) (int, error) {
	ctx, span := w.tracer.Start(ctx, "workspace.load")
	defer span.End()

	found := make(map[string]bool)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !IsSourceFile(p) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		found[p] = true
		if _, err := w.SyncFile(ctx, p, string(data)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", w.root, err)
	}

	for _, f := range w.Files() {
		if !found[f] {
			w.RemoveFileContext(ctx, f)
		}
	}

	span.SetAttributes(attribute.Int("files", len(found)))
	w.logger.Debug("workspace loaded", "files", len(found), "revision", w.rt.Revision())
	return len(found), nil
}

// IsSourceFile reports whether p names a concept source file.
func IsSourceFile(p string) bool {
	return path.Ext(p) == ".cue" && !strings.HasPrefix(path.Base(p), ".")
}
