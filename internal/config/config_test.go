package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.API.Model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %s", cfg.API.Model)
	}
	if cfg.Analysis.MaxFiles != 50 {
		t.Errorf("expected max_files 50, got %d", cfg.Analysis.MaxFiles)
	}
	if cfg.Analysis.Workers != 1 {
		t.Errorf("expected workers 1, got %d", cfg.Analysis.Workers)
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Timeout())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.Analysis.OutputDir != "fixed_output" {
		t.Errorf("expected default output dir, got %s", cfg.Analysis.OutputDir)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
model = "gpt-4.1"
timeout_seconds = 30

[analysis]
max_files = 10
workers = 4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Model != "gpt-4.1" {
		t.Errorf("expected model gpt-4.1, got %s", cfg.API.Model)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout())
	}
	if cfg.Analysis.MaxFiles != 10 || cfg.Analysis.Workers != 4 {
		t.Errorf("analysis config not loaded: %+v", cfg.Analysis)
	}
	// Defaults survive for unset sections
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_BASE_URL", "https://example.test/v1/")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "sk-test" {
		t.Errorf("API key not taken from env")
	}
	if cfg.API.Model != "gpt-4o" {
		t.Errorf("model override not applied, got %s", cfg.API.Model)
	}
	if cfg.API.BaseURL != "https://example.test/v1" {
		t.Errorf("base URL should be trimmed, got %s", cfg.API.BaseURL)
	}
	if cfg.API.GitHubToken != "ghp_test" {
		t.Errorf("GitHub token not taken from env")
	}
	if err := cfg.ValidateForRun(); err != nil {
		t.Errorf("config with key should validate: %v", err)
	}
}

func TestValidateForRunMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.ValidateForRun(); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("expand failed: %s", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path should be unchanged: %s", got)
	}
}
