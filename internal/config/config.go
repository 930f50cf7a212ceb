package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration. It is constructed once at
// startup and passed by reference; nothing reads the environment after Load.
type Config struct {
	General       GeneralConfig       `toml:"general"`
	API           APIConfig           `toml:"api"`
	Analysis      AnalysisConfig      `toml:"analysis"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	PromptsDir   string `toml:"prompts_dir"`
	DatabasePath string `toml:"database_path"`
}

// APIConfig holds inference backend and source host credentials.
// Keys are never read from the TOML file, only from the environment.
type APIConfig struct {
	Key         string `toml:"-"`
	GitHubToken string `toml:"-"`
	BaseURL     string `toml:"base_url"`
	Model       string `toml:"model"`
	TimeoutSec  int    `toml:"timeout_seconds"`
}

// AnalysisConfig holds batch run settings
type AnalysisConfig struct {
	MaxFiles  int    `toml:"max_files"`
	OutputDir string `toml:"output_dir"`
	Workers   int    `toml:"workers"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds relay server settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			PromptsDir:   "",
			DatabasePath: filepath.Join(home, ".config", "vulnfix", "runs.db"),
		},
		API: APIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			TimeoutSec: 60,
		},
		Analysis: AnalysisConfig{
			MaxFiles:  50,
			OutputDir: "fixed_output",
			Workers:   1,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults,
// then overlays credentials and overrides from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.General.PromptsDir = ExpandPath(cfg.General.PromptsDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.Analysis.OutputDir = ExpandPath(cfg.Analysis.OutputDir)

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config
func (c *Config) applyEnv() {
	c.API.Key = os.Getenv("OPENAI_API_KEY")
	c.API.GitHubToken = os.Getenv("GITHUB_TOKEN")
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.API.Model = model
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		c.API.BaseURL = strings.TrimRight(base, "/")
	}
}

// Timeout returns the per-call inference timeout
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ValidateForRun checks run-level fatal conditions that must abort before
// any report is built.
func (c *Config) ValidateForRun() error {
	if c.API.Key == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set; add it to your environment")
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vulnfix", "config.toml")
}
