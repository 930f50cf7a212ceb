package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// fakeGitHub serves the two REST endpoints the provider uses.
func fakeGitHub(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/git/trees/"):
			type entry struct {
				Path string `json:"path"`
				Type string `json:"type"`
			}
			var tree []entry
			tree = append(tree, entry{Path: "src", Type: "tree"})
			for path := range files {
				tree = append(tree, entry{Path: path, Type: "blob"})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"tree": tree})

		case strings.Contains(r.URL.Path, "/contents/"):
			path := strings.SplitN(r.URL.Path, "/contents/", 2)[1]
			content, ok := files[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
				"encoding": "base64",
			})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestProvider(srv *httptest.Server, folder, token string, opts Options) *GitHubProvider {
	p := NewGitHubProvider(domain.GitHubRef{
		Owner: "acme", Repo: "webapp", Branch: "main", Folder: folder,
	}, token, opts)
	p.APIBase = srv.URL
	return p
}

func TestGitHubProviderFetchesFolder(t *testing.T) {
	srv := fakeGitHub(t, map[string]string{
		"src/app.js":    "eval(x)",
		"src/util.ts":   "export {}",
		"docs/notes.js": "outside folder",
		"src/logo.png":  "binary",
	})
	defer srv.Close()

	files, err := newTestProvider(srv, "src", "", Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(files), files)
	}

	byPath := map[string]string{}
	for _, f := range files {
		byPath[f.Path] = f.Content
	}
	if byPath["app.js"] != "eval(x)" {
		t.Errorf("content not decoded: %q", byPath["app.js"])
	}
	if _, ok := byPath["util.ts"]; !ok {
		t.Errorf("folder-relative path missing: %v", byPath)
	}
}

func TestGitHubProviderSendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"tree": []interface{}{}})
	}))
	defer srv.Close()

	if _, err := newTestProvider(srv, "", "ghp_secret", Options{}).List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer ghp_secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestGitHubProviderAnonymousWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"tree": []interface{}{}})
	}))
	defer srv.Close()

	if _, err := newTestProvider(srv, "", "", Options{}).List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("anonymous access should send no auth header, got %q", gotAuth)
	}
}

func TestGitHubProviderUnresolvableBranch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv, "", "", Options{}).List(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestGitHubProviderMaxFiles(t *testing.T) {
	srv := fakeGitHub(t, map[string]string{
		"a.js": "a", "b.js": "b", "c.js": "c",
	})
	defer srv.Close()

	files, err := newTestProvider(srv, "", "", Options{MaxFiles: 1}).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}
}

func TestGitHubProviderStreamPartialThenError(t *testing.T) {
	srv := fakeGitHub(t, map[string]string{
		"a.js": "a", "b.js": "b", "c.js": "c",
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var seen int
	err := newTestProvider(srv, "", "", Options{}).Stream(ctx, func(f domain.SourceFile) error {
		seen++
		if seen == 1 {
			cancel() // Consumer goes away mid-stream
		}
		return nil
	})
	if err == nil {
		t.Fatal("cancellation after partial delivery should surface as an error")
	}
	if seen == 0 || seen == 3 {
		t.Errorf("expected partial delivery, got %d files", seen)
	}
}

func TestGitHubProviderSkipsFailedDownloads(t *testing.T) {
	files := map[string]string{"ok.js": "fine"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/git/trees/"):
			json.NewEncoder(w).Encode(map[string]interface{}{"tree": []map[string]string{
				{"path": "broken.js", "type": "blob"},
				{"path": "ok.js", "type": "blob"},
			}})
		case strings.Contains(r.URL.Path, "/contents/broken.js"):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.Contains(r.URL.Path, "/contents/ok.js"):
			json.NewEncoder(w).Encode(map[string]string{
				"content": base64.StdEncoding.EncodeToString([]byte(files["ok.js"])),
			})
		}
	}))
	defer srv.Close()

	got, err := newTestProvider(srv, "", "", Options{}).List(context.Background())
	if err != nil {
		t.Fatalf("per-file failures must not abort: %v", err)
	}
	if len(got) != 1 || got[0].Path != "ok.js" {
		t.Errorf("expected only the fetchable file, got %+v", got)
	}
}
