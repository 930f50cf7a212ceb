package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// defaultAPIBase is the GitHub REST API root
const defaultAPIBase = "https://api.github.com"

// GitHubProvider enumerates matching files from a branch (optionally a
// folder) of a GitHub repository via the REST API. A missing token degrades
// to rate-limited anonymous access rather than failing.
type GitHubProvider struct {
	Ref   domain.GitHubRef
	Token string
	Opts  Options

	// APIBase overrides the GitHub API root, for tests
	APIBase string

	client *http.Client
}

// NewGitHubProvider creates a provider for the given repository reference.
func NewGitHubProvider(ref domain.GitHubRef, token string, opts Options) *GitHubProvider {
	return &GitHubProvider{
		Ref:    ref,
		Token:  token,
		Opts:   opts,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// treeResponse is the git trees API payload
type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// contentResponse is the repository contents API payload
type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// List fetches the branch tree, filters it, and downloads file contents in
// tree order. An unresolvable repository/branch is ErrSourceUnavailable;
// individual file download failures are skipped with a warning.
func (p *GitHubProvider) List(ctx context.Context) ([]domain.SourceFile, error) {
	return collect(ctx, p.Stream)
}

// Stream yields each file as its download completes, so consumers see
// partial results while the rest of the tree is still being fetched.
func (p *GitHubProvider) Stream(ctx context.Context, yield func(domain.SourceFile) error) error {
	paths, err := p.listTree(ctx)
	if err != nil {
		return err
	}

	max := p.Opts.maxFiles()
	delivered := 0
	for _, path := range paths {
		if delivered >= max {
			break
		}
		content, err := p.fetchContent(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stderr, "Warning: could not fetch %s: %v\n", path, err)
			continue
		}
		if err := yield(domain.SourceFile{Path: p.relative(path), Content: content}); err != nil {
			return err
		}
		delivered++
	}
	return nil
}

// listTree returns the repo-relative paths of matching blobs in tree order.
func (p *GitHubProvider) listTree(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		p.apiBase(), p.Ref.Owner, p.Ref.Repo, url.PathEscape(p.Ref.Branch))

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s/%s@%s: %v",
			ErrSourceUnavailable, p.Ref.Owner, p.Ref.Repo, p.Ref.Branch, err)
	}

	var tree treeResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("%w: parse tree response: %v", ErrSourceUnavailable, err)
	}

	folder := strings.TrimSuffix(p.Ref.Folder, "/")
	var paths []string
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if folder != "" && entry.Path != folder && !strings.HasPrefix(entry.Path, folder+"/") {
			continue
		}
		if !p.Opts.matches(entry.Path) {
			continue
		}
		paths = append(paths, entry.Path)
	}
	return paths, nil
}

// fetchContent downloads and decodes one file via the contents API.
func (p *GitHubProvider) fetchContent(ctx context.Context, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		p.apiBase(), p.Ref.Owner, p.Ref.Repo, path, url.QueryEscape(p.Ref.Branch))

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var content contentResponse
	if err := json.Unmarshal(body, &content); err != nil {
		return "", fmt.Errorf("parse contents response: %w", err)
	}
	if content.Content == "" {
		return "", nil
	}

	// The contents API base64-encodes with embedded newlines
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return string(decoded), nil
}

func (p *GitHubProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// relative strips the configured folder prefix so reported paths are
// relative to the requested root, matching the local provider.
func (p *GitHubProvider) relative(path string) string {
	folder := strings.TrimSuffix(p.Ref.Folder, "/")
	if folder == "" {
		return path
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(path, folder), "/")
	if rel == "" {
		// Folder named a single file
		return path[strings.LastIndex(path, "/")+1:]
	}
	return rel
}

func (p *GitHubProvider) apiBase() string {
	if p.APIBase != "" {
		return strings.TrimRight(p.APIBase, "/")
	}
	return defaultAPIBase
}

func (p *GitHubProvider) httpClient() *http.Client {
	if p.client == nil {
		p.client = &http.Client{Timeout: 30 * time.Second}
	}
	return p.client
}
