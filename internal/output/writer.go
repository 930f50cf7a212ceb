// Package output computes collision-free output paths and persists
// transformed files under a mirrored directory layout.
package output

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Writer persists transformed code under Dir. In dry-run mode nothing is
// written and the output directory is never created.
type Writer struct {
	Dir    string
	DryRun bool
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, dryRun bool) *Writer {
	return &Writer{Dir: dir, DryRun: dryRun}
}

// ComputePath returns the output path for a (file, prompt) cell, relative to
// the output directory: the source's relative directory is mirrored and
// "_prompt_<index>" is inserted before the extension. Distinct cells never
// collide because the prompt index is unique per file; recomputing the same
// cell yields the same path, so reruns overwrite deterministically.
func ComputePath(relPath string, promptIndex int) string {
	dir := path.Dir(relPath)
	base := path.Base(relPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := fmt.Sprintf("%s_prompt_%d%s", stem, promptIndex, ext)
	if dir == "." {
		return name
	}
	return path.Join(dir, name)
}

// Write persists content for a cell and returns the report-facing relative
// output path. Dry-run returns an empty path and touches nothing on disk.
// Parent directories are created on demand.
func (w *Writer) Write(relPath string, promptIndex int, content string) (string, error) {
	if w.DryRun {
		return "", nil
	}

	outRel := ComputePath(relPath, promptIndex)
	target := filepath.Join(w.Dir, filepath.FromSlash(outRel))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return outRel, nil
}
