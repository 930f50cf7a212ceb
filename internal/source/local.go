package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// LocalProvider enumerates matching files under a local folder.
type LocalProvider struct {
	Root string
	Opts Options
}

// NewLocalProvider creates a provider rooted at folder.
func NewLocalProvider(folder string, opts Options) *LocalProvider {
	return &LocalProvider{Root: folder, Opts: opts}
}

// List walks the root in lexical order and returns matching files as
// POSIX-style relative paths. A missing or non-directory root is a
// run-level ErrSourceUnavailable.
func (p *LocalProvider) List(ctx context.Context) ([]domain.SourceFile, error) {
	return collect(ctx, p.Stream)
}

// Stream walks the root and yields each matching file as it is read.
func (p *LocalProvider) Stream(ctx context.Context, yield func(domain.SourceFile) error) error {
	info, err := os.Stat(p.Root)
	if err != nil {
		return fmt.Errorf("%w: local folder %s: %v", ErrSourceUnavailable, p.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, p.Root)
	}

	max := p.Opts.maxFiles()
	delivered := 0

	return filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if delivered >= max {
			return fs.SkipAll
		}
		rel, err := filepath.Rel(p.Root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !p.Opts.matches(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not read file %s: %v\n", path, err)
			return nil
		}
		if err := yield(domain.SourceFile{Path: rel, Content: string(content)}); err != nil {
			return err
		}
		delivered++
		return nil
	})
}
