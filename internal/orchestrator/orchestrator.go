// Package orchestrator drives the (file × prompt) batch: it invokes the
// inference backend for every cell, isolates per-cell failures, and
// assembles a deterministic run report.
package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
	"github.com/seclens/vulnfix-orchestrator/internal/extract"
	"github.com/seclens/vulnfix-orchestrator/internal/inference"
	"github.com/seclens/vulnfix-orchestrator/internal/output"
	"github.com/seclens/vulnfix-orchestrator/internal/prompts"
)

// EventType classifies progress events emitted during a run
type EventType string

const (
	EventCellStarted  EventType = "cell_started"
	EventCellFinished EventType = "cell_finished"
	EventRunFinished  EventType = "run_finished"
)

// Event reports batch progress to subscribers (TUI, SSE, websocket).
type Event struct {
	Type        EventType             `json:"type"`
	RunID       string                `json:"run_id"`
	Path        string                `json:"path,omitempty"`
	PromptIndex int                   `json:"prompt_index,omitempty"`
	Outcome     *domain.PromptOutcome `json:"outcome,omitempty"`
	Completed   int                   `json:"completed"`
	Total       int                   `json:"total"`
}

// Meta carries the report metadata the orchestrator does not compute itself.
type Meta struct {
	Source      domain.Source
	LocalFolder string
	GitHub      domain.GitHubRef
	Model       string
	OutputDir   string
}

// Options tune a run.
type Options struct {
	// Workers bounds concurrent cells; <=1 means the sequential
	// reference model. Ordering of the report never depends on it.
	Workers int
	OnEvent func(Event)
	Logger  *zap.SugaredLogger
}

// Orchestrator runs batches against one completer and writer.
type Orchestrator struct {
	completer inference.Completer
	writer    *output.Writer
	opts      Options
	logger    *zap.SugaredLogger
}

// New creates an orchestrator.
func New(completer inference.Completer, writer *output.Writer, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		completer: completer,
		writer:    writer,
		opts:      opts,
		logger:    logger,
	}
}

// Run processes every (file, prompt) cell and returns the report. A cell
// failure (inference error, write error, timeout) degrades that cell only:
// the run always yields exactly len(prompts) outcomes per file and exits
// through the normal path. Results are ordered by the provider's
// enumeration order and, within a file, by prompt index, regardless of
// completion order.
func (o *Orchestrator) Run(ctx context.Context, meta Meta, sources []domain.SourceFile, templates []prompts.Template) (*domain.RunReport, string) {
	runID := uuid.NewString()
	total := len(sources) * len(templates)
	var completed atomic.Int64

	results := make([]domain.FileResult, len(sources))
	for i, file := range sources {
		results[i] = domain.FileResult{
			Path:          file.Path,
			PromptResults: make([]domain.PromptOutcome, len(templates)),
		}
	}

	workers := o.opts.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, file := range sources {
		for j, tmpl := range templates {
			i, j, file, tmpl := i, j, file, tmpl
			g.Go(func() error {
				o.emit(Event{
					Type: EventCellStarted, RunID: runID,
					Path: file.Path, PromptIndex: tmpl.Order,
					Completed: int(completed.Load()), Total: total,
				})

				outcome := o.runCell(gctx, file, tmpl)
				results[i].PromptResults[j] = outcome

				done := int(completed.Add(1))
				o.emit(Event{
					Type: EventCellFinished, RunID: runID,
					Path: file.Path, PromptIndex: tmpl.Order,
					Outcome: &outcome, Completed: done, Total: total,
				})
				return nil
			})
		}
	}
	_ = g.Wait() // Cells never return errors; failures live in their outcomes

	report := &domain.RunReport{
		Source:      meta.Source,
		LocalFolder: meta.LocalFolder,
		Owner:       meta.GitHub.Owner,
		Repo:        meta.GitHub.Repo,
		Branch:      meta.GitHub.Branch,
		Folder:      meta.GitHub.Folder,
		Model:       meta.Model,
		OutputDir:   meta.OutputDir,
		Results:     results,
	}

	o.logger.Infow("run finished",
		"run_id", runID,
		"files", len(sources),
		"cells", total,
		"failures", report.FailureCount(),
	)
	o.emit(Event{Type: EventRunFinished, RunID: runID, Completed: total, Total: total})
	return report, runID
}

// runCell transforms one (file, prompt) pair into its outcome.
func (o *Orchestrator) runCell(ctx context.Context, file domain.SourceFile, tmpl prompts.Template) domain.PromptOutcome {
	preview := prompts.Preview(tmpl.Text)

	raw, err := o.completer.Complete(ctx, prompts.Fill(tmpl.Text, file.Path, file.Content))
	if err != nil {
		o.logger.Warnw("cell failed", "path", file.Path, "prompt", tmpl.Order, "error", err)
		return domain.PromptOutcome{
			PromptIndex:   tmpl.Order,
			Error:         err.Error(),
			PromptPreview: preview,
		}
	}

	res := extract.Extract(raw)
	outcome := domain.PromptOutcome{
		PromptIndex:   tmpl.Order,
		Summary:       res.Summary,
		Findings:      res.Findings,
		PromptPreview: preview,
	}

	if res.FixedCode != "" {
		outRel, err := o.writer.Write(file.Path, tmpl.Order, res.FixedCode)
		if err != nil {
			// A write failure is a per-cell error like any other
			o.logger.Warnw("cell write failed", "path", file.Path, "prompt", tmpl.Order, "error", err)
			return domain.PromptOutcome{
				PromptIndex:   tmpl.Order,
				Error:         err.Error(),
				PromptPreview: preview,
			}
		}
		if outRel != "" {
			outcome.Written = true
			outcome.OutputPath = outRel
		}
	}
	return outcome
}

func (o *Orchestrator) emit(ev Event) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(ev)
	}
}
