// Package source enumerates the files a run will analyze, either from a
// local folder or from a GitHub repository.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// ErrSourceUnavailable wraps errors that mean the source root itself cannot
// be resolved. This is a run-level fatal error, not a per-file one.
var ErrSourceUnavailable = fmt.Errorf("source unavailable")

// DefaultMaxFiles caps enumeration when no explicit limit is configured
const DefaultMaxFiles = 50

// DefaultExtensions is the extension allow-list for analyzable files
var DefaultExtensions = []string{".js", ".ts", ".jsx", ".tsx"}

// Provider produces an ordered sequence of source files.
type Provider interface {
	// List returns matching files in a stable enumeration order, capped at
	// the provider's max-files limit (first N, not sampled).
	List(ctx context.Context) ([]domain.SourceFile, error)

	// Stream delivers matching files one at a time, in the same order and
	// under the same cap as List, so a consumer can forward partial results
	// while a large source is still being fetched. A yield error stops the
	// stream and is returned as-is.
	Stream(ctx context.Context, yield func(domain.SourceFile) error) error
}

// collect drains a stream into a slice, for the List implementations.
func collect(ctx context.Context, stream func(context.Context, func(domain.SourceFile) error) error) ([]domain.SourceFile, error) {
	var files []domain.SourceFile
	err := stream(ctx, func(f domain.SourceFile) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Options bound what a provider enumerates.
type Options struct {
	MaxFiles   int
	Extensions []string
}

func (o Options) maxFiles() int {
	if o.MaxFiles <= 0 {
		return DefaultMaxFiles
	}
	return o.MaxFiles
}

func (o Options) matches(path string) bool {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
