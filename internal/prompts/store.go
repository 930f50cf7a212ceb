package prompts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoPrompts is returned when a prompt directory yields no usable templates.
// An empty prompt set is a run-level fatal error.
var ErrNoPrompts = fmt.Errorf("no prompt templates found")

// previewLen bounds the prompt excerpt recorded in each outcome
const previewLen = 100

// Template is one loaded prompt template. Order is the 1-based load order
// and matches the prompt_index reported for every cell.
type Template struct {
	Name  string
	Order int
	Text  string
	Meta  *Meta
}

// Meta holds optional frontmatter metadata on a template file.
type Meta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Load reads all *.txt and *.md templates from dir in lexical order.
// An empty dir loads the embedded default prompt set.
func Load(dir string) ([]Template, error) {
	if dir == "" {
		return loadFS(embeddedFS, "templates")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts path %s is not a directory", dir)
	}
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) ([]Template, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var templates []Template
	for _, name := range names {
		data, err := fs.ReadFile(fsys, filepath.Join(root, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not read prompt file %s: %v\n", name, err)
			continue
		}
		meta, body, err := parseFrontmatter(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not parse prompt file %s: %v\n", name, err)
			continue
		}
		templates = append(templates, Template{
			Name:  strings.TrimSuffix(name, filepath.Ext(name)),
			Order: len(templates) + 1,
			Text:  body,
			Meta:  meta,
		})
	}

	if len(templates) == 0 {
		return nil, ErrNoPrompts
	}
	return templates, nil
}

// parseFrontmatter splits content into frontmatter and body.
func parseFrontmatter(content []byte) (*Meta, string, error) {
	str := string(content)

	if !strings.HasPrefix(str, "---\n") {
		return nil, str, nil // No frontmatter
	}

	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return nil, str, nil // Malformed, treat as no frontmatter
	}

	frontmatter := str[4 : 4+end]
	body := str[4+end+5:] // Skip closing "---\n"

	var meta Meta
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return &meta, body, nil
}

// Fill combines a template with a file's path and content. Templates carry
// either a {CODE HERE} or bare {} placeholder for the code and may reference
// the literal /server.js path slot; templates without a code placeholder get
// the code appended after the instructions.
func Fill(text, filePath, code string) string {
	hasPlaceholder := strings.Contains(text, "{CODE HERE}") || strings.Contains(text, "{}")

	filled := strings.ReplaceAll(text, "{CODE HERE}", code)
	filled = strings.ReplaceAll(filled, "{}", code)
	filled = strings.ReplaceAll(filled, "/server.js", filePath)

	if !hasPlaceholder {
		return filled + "\n\n" + code
	}
	return filled
}

// Preview returns a bounded excerpt of the template text for traceability.
func Preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen] + "..."
}
