package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocalProviderFiltersAndOrders(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.js":         "b",
		"a/x.ts":       "x",
		"a/y.tsx":      "y",
		"readme.md":    "ignored",
		"style.css":    "ignored",
		"sub/deep.jsx": "deep",
	})

	files, err := NewLocalProvider(root, Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []string{"a/x.ts", "a/y.tsx", "b.js", "sub/deep.jsx"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(files))
	}
	for i, w := range want {
		if files[i].Path != w {
			t.Errorf("file %d: path %s, want %s", i, files[i].Path, w)
		}
	}
	if files[2].Content != "b" {
		t.Errorf("content not read: %q", files[2].Content)
	}
}

func TestLocalProviderMaxFilesCap(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.js": "a", "b.js": "b", "c.js": "c", "d.js": "d",
	})

	files, err := NewLocalProvider(root, Options{MaxFiles: 2}).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected cap at 2 files, got %d", len(files))
	}
	// First-N truncation in enumeration order
	if files[0].Path != "a.js" || files[1].Path != "b.js" {
		t.Errorf("unexpected truncation: %v, %v", files[0].Path, files[1].Path)
	}
}

func TestLocalProviderMissingRoot(t *testing.T) {
	_, err := NewLocalProvider(filepath.Join(t.TempDir(), "missing"), Options{}).List(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestLocalProviderRootIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "app.js")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLocalProvider(file, Options{}).List(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable for file root, got %v", err)
	}
}

func TestLocalProviderStreamsIncrementally(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.js": "a", "b.js": "b", "c.js": "c",
	})

	var seen []string
	err := NewLocalProvider(root, Options{}).Stream(context.Background(), func(f domain.SourceFile) error {
		seen = append(seen, f.Path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.js", "b.js", "c.js"}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("stream order: got %v, want %v", seen, want)
			break
		}
	}
}

func TestLocalProviderStreamStopsOnYieldError(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.js": "a", "b.js": "b", "c.js": "c",
	})

	sentinel := errors.New("consumer gone")
	var seen int
	err := NewLocalProvider(root, Options{}).Stream(context.Background(), func(f domain.SourceFile) error {
		seen++
		if seen == 2 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("yield error should propagate, got %v", err)
	}
	if seen != 2 {
		t.Errorf("stream should stop at the failing yield, delivered %d", seen)
	}
}

func TestLocalProviderCustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.go": "g", "b.js": "j"})

	files, err := NewLocalProvider(root, Options{Extensions: []string{".go"}}).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "a.go" {
		t.Errorf("custom extension filter failed: %+v", files)
	}
}
