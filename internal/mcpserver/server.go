// Package mcpserver exposes the analysis pipeline over the Model Context
// Protocol so agent tooling can fetch sources and run scans directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/seclens/vulnfix-orchestrator/internal/config"
	"github.com/seclens/vulnfix-orchestrator/internal/domain"
	"github.com/seclens/vulnfix-orchestrator/internal/extract"
	"github.com/seclens/vulnfix-orchestrator/internal/inference"
	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
	"github.com/seclens/vulnfix-orchestrator/internal/output"
	"github.com/seclens/vulnfix-orchestrator/internal/prompts"
	"github.com/seclens/vulnfix-orchestrator/internal/source"
)

// MCPServer wraps the pipeline and exposes it via Model Context Protocol
type MCPServer struct {
	cfg       *config.Config
	completer inference.Completer
	logger    *zap.SugaredLogger
	server    *server.MCPServer
}

// New creates an MCP server around the given configuration
func New(cfg *config.Config, logger *zap.SugaredLogger) (*MCPServer, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &MCPServer{
		cfg: cfg,
		completer: inference.NewClient(inference.Config{
			APIKey:  cfg.API.Key,
			BaseURL: cfg.API.BaseURL,
			Model:   cfg.API.Model,
			Timeout: cfg.Timeout(),
			Logger:  logger,
		}),
		logger: logger,
	}

	s.server = server.NewMCPServer(
		"vulnfix-orchestrator",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools for the pipeline
func (s *MCPServer) registerTools() {
	fetchTool := mcp.NewTool("fetch_github_files",
		mcp.WithDescription("List and download analyzable files from a GitHub repository folder"),
		mcp.WithString("owner",
			mcp.Required(),
			mcp.Description("Repository owner"),
		),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository name"),
		),
		mcp.WithString("branch",
			mcp.Description("Branch name (default: main)"),
		),
		mcp.WithString("folder",
			mcp.Description("Folder within the repository to restrict to"),
		),
		mcp.WithNumber("max_files",
			mcp.Description("Maximum number of files to fetch"),
		),
	)
	s.server.AddTool(fetchTool, s.handleFetchGitHubFiles)

	readTool := mcp.NewTool("read_local_files",
		mcp.WithDescription("List and read analyzable files from a local folder"),
		mcp.WithString("folder",
			mcp.Required(),
			mcp.Description("Absolute path of the folder to read"),
		),
		mcp.WithNumber("max_files",
			mcp.Description("Maximum number of files to read"),
		),
	)
	s.server.AddTool(readTool, s.handleReadLocalFiles)

	analyzeTool := mcp.NewTool("analyze_code",
		mcp.WithDescription("Run one analysis prompt against a code snippet and return the extracted summary and findings"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source code to analyze"),
		),
		mcp.WithString("file_path",
			mcp.Description("Path used to fill the prompt's path placeholder (default: snippet.js)"),
		),
		mcp.WithNumber("prompt_index",
			mcp.Description("1-based index of the loaded prompt to apply (default: 1)"),
		),
	)
	s.server.AddTool(analyzeTool, s.handleAnalyzeCode)

	repoTool := mcp.NewTool("analyze_repository",
		mcp.WithDescription("Run the full scan over a GitHub repository folder and return the run report"),
		mcp.WithString("owner",
			mcp.Required(),
			mcp.Description("Repository owner"),
		),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository name"),
		),
		mcp.WithString("branch",
			mcp.Description("Branch name (default: main)"),
		),
		mcp.WithString("folder",
			mcp.Description("Folder within the repository to restrict to"),
		),
		mcp.WithNumber("max_files",
			mcp.Description("Maximum number of files to analyze"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Skip writing transformed files (default: true)"),
		),
	)
	s.server.AddTool(repoTool, s.handleAnalyzeRepository)

	localTool := mcp.NewTool("analyze_local_folder",
		mcp.WithDescription("Run the full scan over a local folder and return the run report"),
		mcp.WithString("folder",
			mcp.Required(),
			mcp.Description("Absolute path of the folder to analyze"),
		),
		mcp.WithNumber("max_files",
			mcp.Description("Maximum number of files to analyze"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Skip writing transformed files (default: true)"),
		),
	)
	s.server.AddTool(localTool, s.handleAnalyzeLocalFolder)
}

// handleFetchGitHubFiles handles fetch_github_files tool calls
func (s *MCPServer) handleFetchGitHubFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ref := domain.GitHubRef{
		Owner:  owner,
		Repo:   repo,
		Branch: request.GetString("branch", "main"),
		Folder: request.GetString("folder", ""),
	}
	provider := source.NewGitHubProvider(ref, s.cfg.API.GitHubToken, source.Options{
		MaxFiles: request.GetInt("max_files", s.cfg.Analysis.MaxFiles),
	})

	files, err := provider.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch repository: %v", err)), nil
	}
	return filesResult(files)
}

// handleReadLocalFiles handles read_local_files tool calls
func (s *MCPServer) handleReadLocalFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := request.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	provider := source.NewLocalProvider(folder, source.Options{
		MaxFiles: request.GetInt("max_files", s.cfg.Analysis.MaxFiles),
	})

	files, err := provider.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read folder: %v", err)), nil
	}
	return filesResult(files)
}

// handleAnalyzeCode handles analyze_code tool calls
func (s *MCPServer) handleAnalyzeCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filePath := request.GetString("file_path", "snippet.js")
	promptIndex := request.GetInt("prompt_index", 1)

	templates, err := prompts.Load(s.cfg.General.PromptsDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load prompts: %v", err)), nil
	}
	if promptIndex < 1 || promptIndex > len(templates) {
		return mcp.NewToolResultError(fmt.Sprintf("prompt_index %d out of range (1..%d)", promptIndex, len(templates))), nil
	}
	tmpl := templates[promptIndex-1]

	raw, err := s.completer.Complete(ctx, prompts.Fill(tmpl.Text, filePath, code))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Inference failed: %v", err)), nil
	}

	res := extract.Extract(raw)
	payload, _ := json.MarshalIndent(map[string]interface{}{
		"prompt":     tmpl.Name,
		"summary":    res.Summary,
		"findings":   res.Findings,
		"fixed_code": res.FixedCode,
	}, "", "  ")
	return mcp.NewToolResultText(string(payload)), nil
}

// handleAnalyzeRepository handles analyze_repository tool calls
func (s *MCPServer) handleAnalyzeRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ref := domain.GitHubRef{
		Owner:  owner,
		Repo:   repo,
		Branch: request.GetString("branch", "main"),
		Folder: request.GetString("folder", ""),
	}
	provider := source.NewGitHubProvider(ref, s.cfg.API.GitHubToken, source.Options{
		MaxFiles: request.GetInt("max_files", s.cfg.Analysis.MaxFiles),
	})
	meta := orchestrator.Meta{
		Source:    domain.SourceGitHub,
		GitHub:    ref,
		Model:     s.cfg.API.Model,
		OutputDir: s.cfg.Analysis.OutputDir,
	}
	return s.runScan(ctx, request, provider, meta)
}

// handleAnalyzeLocalFolder handles analyze_local_folder tool calls
func (s *MCPServer) handleAnalyzeLocalFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := request.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	provider := source.NewLocalProvider(folder, source.Options{
		MaxFiles: request.GetInt("max_files", s.cfg.Analysis.MaxFiles),
	})
	meta := orchestrator.Meta{
		Source:      domain.SourceLocal,
		LocalFolder: folder,
		Model:       s.cfg.API.Model,
		OutputDir:   s.cfg.Analysis.OutputDir,
	}
	return s.runScan(ctx, request, provider, meta)
}

// runScan executes the full pipeline for a tool call and renders the report
func (s *MCPServer) runScan(ctx context.Context, request mcp.CallToolRequest, provider source.Provider, meta orchestrator.Meta) (*mcp.CallToolResult, error) {
	dryRun := request.GetBool("dry_run", true)

	templates, err := prompts.Load(s.cfg.General.PromptsDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load prompts: %v", err)), nil
	}

	files, err := provider.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to enumerate source: %v", err)), nil
	}

	o := orchestrator.New(s.completer, output.NewWriter(meta.OutputDir, dryRun), orchestrator.Options{
		Workers: s.cfg.Analysis.Workers,
		Logger:  s.logger,
	})
	report, runID := o.Run(ctx, meta, files, templates)

	payload, err := json.MarshalIndent(map[string]interface{}{
		"run_id": runID,
		"report": report,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// filesResult renders an enumerated file list as a JSON tool result
func filesResult(files []domain.SourceFile) (*mcp.CallToolResult, error) {
	if len(files) == 0 {
		return mcp.NewToolResultText("No matching files found"), nil
	}
	payload, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render files: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// Serve starts the MCP server using stdio transport
func (s *MCPServer) Serve() error {
	return server.ServeStdio(s.server)
}
