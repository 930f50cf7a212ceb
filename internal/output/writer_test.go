package output

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputePath(t *testing.T) {
	tests := []struct {
		relPath     string
		promptIndex int
		want        string
	}{
		{"a/x.js", 1, "a/x_prompt_1.js"},
		{"a/x.js", 2, "a/x_prompt_2.js"},
		{"a/x.js", 3, "a/x_prompt_3.js"},
		{"app.js", 2, "app_prompt_2.js"},
		{"src/deep/nested.tsx", 1, "src/deep/nested_prompt_1.tsx"},
		{"noext", 1, "noext_prompt_1"},
	}

	for _, tt := range tests {
		if got := ComputePath(tt.relPath, tt.promptIndex); got != tt.want {
			t.Errorf("ComputePath(%q, %d) = %q, want %q", tt.relPath, tt.promptIndex, got, tt.want)
		}
	}
}

func TestComputePathPairwiseDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, file := range []string{"a/x.js", "a/y.js", "b/x.js", "x.js"} {
		for i := 1; i <= 3; i++ {
			p := ComputePath(file, i)
			if seen[p] {
				t.Errorf("collision at %q", p)
			}
			seen[p] = true
		}
	}
}

func TestWriteCreatesMirroredDirs(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, false)

	outRel, err := w.Write("a/b/app.js", 1, "fixed")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if outRel != "a/b/app_prompt_1.js" {
		t.Errorf("relative path = %q", outRel)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a", "b", "app_prompt_1.js"))
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(data) != "fixed" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteOverwritesDeterministically(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, false)

	if _, err := w.Write("app.js", 1, "first"); err != nil {
		t.Fatal(err)
	}
	outRel, err := w.Write("app.js", 1, "second")
	if err != nil {
		t.Fatalf("rerun should overwrite: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, outRel))
	if string(data) != "second" {
		t.Errorf("rerun should overwrite, got %q", data)
	}
}

func TestDryRunNeverCreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, true)

	outRel, err := w.Write("app.js", 1, "fixed")
	if err != nil {
		t.Fatalf("dry-run write: %v", err)
	}
	if outRel != "" {
		t.Errorf("dry-run should report no output path, got %q", outRel)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("dry-run must not create the output directory")
	}
}
