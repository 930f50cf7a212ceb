package domain

import "encoding/json"

// Source identifies where a run's files came from
type Source string

const (
	SourceLocal  Source = "local"
	SourceGitHub Source = "github"
)

// SourceFile is one file produced by a source provider.
// Path is POSIX-style and relative to the source root, no leading slash.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GitHubRef identifies a folder within a branch of a GitHub repository
type GitHubRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Folder string `json:"folder"`
}

// PromptOutcome is the result of applying one prompt to one file.
// Exactly one outcome exists per (file, prompt) cell. Error and Summary are
// mutually exclusive: an outcome is either a failure (Error set, Written
// false) or a completion (Error empty).
type PromptOutcome struct {
	PromptIndex   int      `json:"prompt_index"`
	Summary       string   `json:"summary,omitempty"`
	Findings      []string `json:"findings,omitempty"`
	Written       bool     `json:"written"`
	OutputPath    string   `json:"output_path,omitempty"`
	Error         string   `json:"error,omitempty"`
	PromptPreview string   `json:"prompt_preview"`
}

// Failed reports whether the cell ended in a failure
func (o PromptOutcome) Failed() bool {
	return o.Error != ""
}

// MarshalJSON keeps the findings key present on every completed cell, as an
// empty list when nothing was found. Failed cells omit it along with summary.
func (o PromptOutcome) MarshalJSON() ([]byte, error) {
	type outcome PromptOutcome
	if o.Failed() {
		return json.Marshal(outcome(o))
	}
	if o.Findings == nil {
		o.Findings = []string{}
	}
	return json.Marshal(struct {
		PromptIndex   int      `json:"prompt_index"`
		Summary       string   `json:"summary,omitempty"`
		Findings      []string `json:"findings"`
		Written       bool     `json:"written"`
		OutputPath    string   `json:"output_path,omitempty"`
		PromptPreview string   `json:"prompt_preview"`
	}{o.PromptIndex, o.Summary, o.Findings, o.Written, o.OutputPath, o.PromptPreview})
}

// FileResult holds the outcomes for one source file, ordered by prompt index.
// Its length always equals the number of loaded prompts, even when every
// call for the file failed.
type FileResult struct {
	Path          string          `json:"path"`
	PromptResults []PromptOutcome `json:"prompt_results"`
}

// RunReport is the JSON document produced by a run. Results preserve the
// provider's enumeration order regardless of cell completion order.
type RunReport struct {
	Source      Source `json:"source"`
	LocalFolder string `json:"local_folder,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Folder      string `json:"folder,omitempty"`
	Model       string `json:"model"`
	OutputDir   string `json:"output_dir"`

	Results []FileResult `json:"results"`
}

// CellCount returns the total number of (file, prompt) cells in the report
func (r *RunReport) CellCount() int {
	n := 0
	for _, fr := range r.Results {
		n += len(fr.PromptResults)
	}
	return n
}

// FailureCount returns the number of cells that ended in a failure
func (r *RunReport) FailureCount() int {
	n := 0
	for _, fr := range r.Results {
		for _, o := range fr.PromptResults {
			if o.Failed() {
				n++
			}
		}
	}
	return n
}

// Descriptor returns a short human-readable source descriptor,
// e.g. "github:owner/repo@branch/folder" or "local:/path"
func (r *RunReport) Descriptor() string {
	if r.Source == SourceGitHub {
		d := "github:" + r.Owner + "/" + r.Repo + "@" + r.Branch
		if r.Folder != "" {
			d += "/" + r.Folder
		}
		return d
	}
	return "local:" + r.LocalFolder
}
