package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seclens/vulnfix-orchestrator/internal/batch"
	"github.com/seclens/vulnfix-orchestrator/internal/config"
	"github.com/seclens/vulnfix-orchestrator/internal/domain"
	"github.com/seclens/vulnfix-orchestrator/internal/inference"
	"github.com/seclens/vulnfix-orchestrator/internal/notify"
	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
	"github.com/seclens/vulnfix-orchestrator/internal/output"
	"github.com/seclens/vulnfix-orchestrator/internal/prompts"
	"github.com/seclens/vulnfix-orchestrator/internal/runstore"
	"github.com/seclens/vulnfix-orchestrator/internal/source"
	"github.com/seclens/vulnfix-orchestrator/internal/watch"
	"github.com/seclens/vulnfix-orchestrator/tui"
	"github.com/seclens/vulnfix-orchestrator/web/api"
)

var (
	runLocal    string
	runGitHub   string
	runBranch   string
	runFolder   string
	runModel    string
	runMaxFiles int
	runOut      string
	runDryRun   bool
	runWorkers  int
	runTimeout  int
	runPrompts  string
	runReport   string
	runTUI      bool

	servePort int
	serveHost string

	schedulePath string

	runsLimit int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the prompt matrix over a source tree",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runLocal, "local", "", "local folder to analyze")
	runCmd.Flags().StringVar(&runGitHub, "github", "", "GitHub repository as owner/repo")
	runCmd.Flags().StringVar(&runBranch, "branch", "main", "branch to analyze")
	runCmd.Flags().StringVar(&runFolder, "folder", "", "folder within the repository")
	runCmd.Flags().StringVar(&runModel, "model", "", "model override")
	runCmd.Flags().IntVar(&runMaxFiles, "max-files", 0, "file cap override")
	runCmd.Flags().StringVar(&runOut, "out", "", "output directory override")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "analyze without writing output files")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent cells (default 1)")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "per-call timeout in seconds")
	runCmd.Flags().StringVar(&runPrompts, "prompts", "", "prompt directory (default: embedded templates)")
	runCmd.Flags().StringVar(&runReport, "report", "", "write the report to this file instead of stdout")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "show live progress dashboard")
	rootCmd.AddCommand(runCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP relay server",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind")
	rootCmd.AddCommand(serveCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduled scans from a schedule file",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&schedulePath, "schedule", "schedule.toml", "schedule file path")
	rootCmd.AddCommand(scheduleCmd)

	promptsCmd := &cobra.Command{
		Use:   "prompts",
		Short: "List loaded prompt templates",
		RunE:  runPromptsList,
	}
	promptsCmd.Flags().StringVar(&runPrompts, "prompts", "", "prompt directory (default: embedded templates)")
	rootCmd.AddCommand(promptsCmd)

	runsCmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List stored runs, or show one report",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// scanParams is everything one scan needs beyond the config
type scanParams struct {
	source      domain.Source
	localFolder string
	ref         domain.GitHubRef
	model       string
	maxFiles    int
	workers     int
	outputDir   string
	promptsDir  string
	dryRun      bool
	onEvent     func(orchestrator.Event)
}

// executeScan runs one scan end to end. Run-level failures (missing key,
// unreachable source, no prompts) return an error; per-cell failures live
// inside the report.
func executeScan(ctx context.Context, cfg *config.Config, params scanParams, logger *zap.SugaredLogger) (string, *domain.RunReport, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return "", nil, err
	}

	templates, err := prompts.Load(params.promptsDir)
	if err != nil {
		return "", nil, err
	}

	opts := source.Options{MaxFiles: params.maxFiles}
	var provider source.Provider
	meta := orchestrator.Meta{
		Source:    params.source,
		Model:     params.model,
		OutputDir: params.outputDir,
	}
	switch params.source {
	case domain.SourceGitHub:
		provider = source.NewGitHubProvider(params.ref, cfg.API.GitHubToken, opts)
		meta.GitHub = params.ref
	default:
		provider = source.NewLocalProvider(params.localFolder, opts)
		meta.LocalFolder = params.localFolder
	}

	files, err := provider.List(ctx)
	if err != nil {
		return "", nil, err
	}

	client := inference.NewClient(inference.Config{
		APIKey:  cfg.API.Key,
		BaseURL: cfg.API.BaseURL,
		Model:   params.model,
		Timeout: cfg.Timeout(),
		Logger:  logger,
	})
	writer := output.NewWriter(params.outputDir, params.dryRun)
	orch := orchestrator.New(client, writer, orchestrator.Options{
		Workers: params.workers,
		OnEvent: params.onEvent,
		Logger:  logger,
	})

	report, runID := orch.Run(ctx, meta, files, templates)
	return runID, report, nil
}

// applyOverrides folds run command flags into the config
func applyOverrides(cfg *config.Config) {
	if runModel != "" {
		cfg.API.Model = runModel
	}
	if runMaxFiles > 0 {
		cfg.Analysis.MaxFiles = runMaxFiles
	}
	if runOut != "" {
		cfg.Analysis.OutputDir = runOut
	}
	if runWorkers > 0 {
		cfg.Analysis.Workers = runWorkers
	}
	if runTimeout > 0 {
		cfg.API.TimeoutSec = runTimeout
	}
	if runPrompts != "" {
		cfg.General.PromptsDir = runPrompts
	}
}

func parseGitHubRepo(raw string) (domain.GitHubRef, error) {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.GitHubRef{}, fmt.Errorf("--github expects owner/repo, got %q", raw)
	}
	return domain.GitHubRef{Owner: parts[0], Repo: parts[1], Branch: runBranch, Folder: runFolder}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	if (runLocal == "") == (runGitHub == "") {
		return fmt.Errorf("exactly one of --local or --github is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(cfg)
	logger := newLogger()

	params := scanParams{
		source:      domain.SourceLocal,
		localFolder: runLocal,
		model:       cfg.API.Model,
		maxFiles:    cfg.Analysis.MaxFiles,
		workers:     cfg.Analysis.Workers,
		outputDir:   cfg.Analysis.OutputDir,
		promptsDir:  cfg.General.PromptsDir,
		dryRun:      runDryRun,
	}
	if runGitHub != "" {
		ref, err := parseGitHubRepo(runGitHub)
		if err != nil {
			return err
		}
		params.source = domain.SourceGitHub
		params.ref = ref
	}

	var runID string
	var report *domain.RunReport

	if runTUI {
		runID, report, err = runWithTUI(cfg, params, logger)
	} else {
		runID, report, err = executeScan(context.Background(), cfg, params, logger)
	}
	if err != nil {
		return err
	}

	if err := emitReport(report); err != nil {
		return err
	}

	saveRun(cfg, runID, report, runDryRun, logger)
	sendNotifications(cfg, runID, report, logger)

	if n := report.FailureCount(); n > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d cells failed; see the report for details\n", n, report.CellCount())
	}
	return nil
}

// runWithTUI drives the scan in the background and shows live progress
func runWithTUI(cfg *config.Config, params scanParams, logger *zap.SugaredLogger) (string, *domain.RunReport, error) {
	events := make(chan orchestrator.Event, 64)
	params.onEvent = func(ev orchestrator.Event) { events <- ev }

	descriptor := "local:" + params.localFolder
	if params.source == domain.SourceGitHub {
		descriptor = fmt.Sprintf("github:%s/%s@%s", params.ref.Owner, params.ref.Repo, params.ref.Branch)
		if params.ref.Folder != "" {
			descriptor += "/" + params.ref.Folder
		}
	}

	type scanResult struct {
		runID  string
		report *domain.RunReport
		err    error
	}
	done := make(chan scanResult, 1)
	go func() {
		runID, report, err := executeScan(context.Background(), cfg, params, logger)
		close(events)
		done <- scanResult{runID, report, err}
	}()

	p := tea.NewProgram(tui.NewModel(descriptor, params.model, events), tea.WithAltScreen())
	_, uiErr := p.Run()

	// Keep draining so the scan never blocks if the dashboard exited early
	go func() {
		for range events {
		}
	}()

	res := <-done
	if uiErr != nil {
		return "", nil, uiErr
	}
	return res.runID, res.report, res.err
}

// emitReport writes the report JSON to --report or stdout
func emitReport(report *domain.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if runReport != "" {
		return os.WriteFile(runReport, append(data, '\n'), 0644)
	}
	fmt.Println(string(data))
	return nil
}

// saveRun persists the run; a store failure is a warning, not a run failure
func saveRun(cfg *config.Config, runID string, report *domain.RunReport, dryRun bool, logger *zap.SugaredLogger) {
	if cfg.General.DatabasePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		logger.Warnw("creating database directory failed", "error", err)
		return
	}
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		logger.Warnw("opening run store failed", "error", err)
		return
	}
	defer store.Close()
	if err := store.SaveRun(runID, report, dryRun); err != nil {
		logger.Warnw("saving run failed", "run_id", runID, "error", err)
	}
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

func sendNotifications(cfg *config.Config, runID string, report *domain.RunReport, logger *zap.SugaredLogger) {
	if err := buildNotifier(cfg).Send(notify.ForRun(runID, report)); err != nil {
		logger.Warnw("notification failed", "error", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Web.Port = servePort
	}
	if serveHost != "" {
		cfg.Web.Host = serveHost
	}
	logger := newLogger()

	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		return err
	}
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := func(ctx context.Context, req api.RunRequest, onEvent func(orchestrator.Event)) (string, *domain.RunReport, error) {
		params := scanParams{
			source:      domain.SourceLocal,
			localFolder: req.LocalFolder,
			model:       cfg.API.Model,
			maxFiles:    cfg.Analysis.MaxFiles,
			workers:     cfg.Analysis.Workers,
			outputDir:   cfg.Analysis.OutputDir,
			promptsDir:  cfg.General.PromptsDir,
			dryRun:      req.DryRun,
			onEvent:     onEvent,
		}
		if req.Source == "github" {
			params.source = domain.SourceGitHub
			params.ref = domain.GitHubRef{Owner: req.Owner, Repo: req.Repo, Branch: req.Branch, Folder: req.Folder}
		}
		if req.Model != "" {
			params.model = req.Model
		}
		if req.MaxFiles > 0 {
			params.maxFiles = req.MaxFiles
		}
		if req.Workers > 0 {
			params.workers = req.Workers
		}
		return executeScan(ctx, cfg, params, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	fmt.Printf("Relay listening on http://%s\n", addr)
	return api.NewServer(cfg, store, runner, addr, logger).Start()
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	schedule, err := batch.LoadScheduleConfig(schedulePath)
	if err != nil {
		return err
	}
	if len(schedule.Scans) == 0 {
		return fmt.Errorf("no scans defined in %s", schedulePath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		return err
	}
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	sched, err := batch.NewScheduler(schedule.Scans, logger)
	if err != nil {
		return err
	}

	// Hot-reload is implicit: templates are re-read per scan. The watcher
	// just surfaces edits in the log so operators see them picked up.
	if cfg.General.PromptsDir != "" {
		watcher, err := watch.NewPromptWatcher(cfg.General.PromptsDir, func(files []string) {
			logger.Infow("prompt templates changed", "files", files)
			fmt.Printf("Prompt templates changed: %s\n", strings.Join(files, ", "))
		})
		if err != nil {
			logger.Warnw("prompt watcher unavailable", "error", err)
		} else {
			watcher.Start(context.Background())
			defer watcher.Stop()
		}
	}

	for _, name := range sched.ListScans() {
		fmt.Printf("Scheduled scan %q, next run %s\n", name, sched.NextRun(name).Format("2006-01-02 15:04"))
	}

	sched.Start(func(job batch.ScanJob) error {
		scanID, err := store.RecordScanStart(job.Name)
		if err != nil {
			logger.Warnw("recording scan start failed", "scan", job.Name, "error", err)
		}

		params := scanParams{
			source:      job.Source(),
			localFolder: job.LocalFolder,
			model:       cfg.API.Model,
			maxFiles:    cfg.Analysis.MaxFiles,
			workers:     job.Workers,
			outputDir:   job.OutputDir,
			promptsDir:  cfg.General.PromptsDir,
		}
		if job.Source() == domain.SourceGitHub {
			parts := strings.SplitN(job.GitHubRepo, "/", 2)
			params.ref = domain.GitHubRef{Owner: parts[0], Repo: parts[1], Branch: job.Branch, Folder: job.Folder}
		}
		if job.Model != "" {
			params.model = job.Model
		}
		if job.MaxFiles > 0 {
			params.maxFiles = job.MaxFiles
		}
		if job.PromptsDir != "" {
			params.promptsDir = job.PromptsDir
		}

		runID, report, err := executeScan(context.Background(), cfg, params, logger)
		if err == nil {
			// The scan row references the run, so the run is saved first
			if saveErr := store.SaveRun(runID, report, false); saveErr != nil {
				logger.Warnw("saving scheduled run failed", "run_id", runID, "error", saveErr)
				runID = ""
			}
		}
		if recErr := store.RecordScanFinish(scanID, runID, err); recErr != nil {
			logger.Warnw("recording scan finish failed", "scan", job.Name, "error", recErr)
		}
		if err != nil {
			return err
		}
		if job.Notify {
			sendNotifications(cfg, runID, report, logger)
		}
		return nil
	})
	return nil
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.General.PromptsDir
	if runPrompts != "" {
		dir = runPrompts
	}

	templates, err := prompts.Load(dir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tDESCRIPTION\tPREVIEW")
	for _, t := range templates {
		desc := "-"
		if t.Meta != nil && t.Meta.Description != "" {
			desc = t.Meta.Description
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.Order, t.Name, desc, prompts.Preview(t.Text))
	}
	w.Flush()
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		report, err := store.GetRun(args[0])
		if err != nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	runs, err := store.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No stored runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tMODEL\tFILES\tCELLS\tFAILURES\tDRY\tCREATED")
	for _, r := range runs {
		dry := ""
		if r.DryRun {
			dry = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.Descriptor, r.Model, r.Files, r.Cells, r.Failures, dry,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}
