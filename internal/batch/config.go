package batch

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// ScanJob is one scheduled scan: a cron expression plus the source and
// run parameters to scan with.
type ScanJob struct {
	Name        string `toml:"name"`
	Cron        string `toml:"cron"`
	LocalFolder string `toml:"local_folder"`
	GitHubRepo  string `toml:"github_repo"` // owner/repo
	Branch      string `toml:"branch"`
	Folder      string `toml:"folder"`
	Model       string `toml:"model"`
	MaxFiles    int    `toml:"max_files"`
	OutputDir   string `toml:"output_dir"`
	PromptsDir  string `toml:"prompts_dir"`
	Workers     int    `toml:"workers"`
	Notify      bool   `toml:"notify"`
}

// ScheduleConfig holds all scheduled scan jobs
type ScheduleConfig struct {
	Scans []ScanJob `toml:"scan"`
}

// Source returns which source kind the job targets
func (j *ScanJob) Source() domain.Source {
	if j.GitHubRepo != "" {
		return domain.SourceGitHub
	}
	return domain.SourceLocal
}

// Validate checks the job and fills defaults
func (j *ScanJob) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("scan name is required")
	}
	if j.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(j.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if j.LocalFolder == "" && j.GitHubRepo == "" {
		return fmt.Errorf("scan needs local_folder or github_repo")
	}
	if j.LocalFolder != "" && j.GitHubRepo != "" {
		return fmt.Errorf("scan cannot have both local_folder and github_repo")
	}
	if j.GitHubRepo != "" {
		if parts := strings.SplitN(j.GitHubRepo, "/", 2); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("github_repo must be owner/repo, got %q", j.GitHubRepo)
		}
		if j.Branch == "" {
			j.Branch = "main"
		}
	}
	if j.OutputDir == "" {
		j.OutputDir = "fixed_output"
	}
	if j.Workers <= 0 {
		j.Workers = 1
	}
	return nil
}

// LoadScheduleConfig loads scan jobs from a TOML file. A missing file is
// an empty schedule, not an error.
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Scans {
		if err := cfg.Scans[i].Validate(); err != nil {
			return nil, fmt.Errorf("scan %d: %w", i, err)
		}
	}

	return &cfg, nil
}
