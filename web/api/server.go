// Package api is the HTTP relay: it streams source enumeration as NDJSON,
// triggers runs, serves stored reports, and fans run events out over SSE
// and websockets.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/seclens/vulnfix-orchestrator/internal/config"
	"github.com/seclens/vulnfix-orchestrator/internal/domain"
	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
	"github.com/seclens/vulnfix-orchestrator/internal/runstore"
)

// RunStore is the persistence surface the server needs
type RunStore interface {
	SaveRun(runID string, report *domain.RunReport, dryRun bool) error
	GetRun(runID string) (*domain.RunReport, error)
	ListRuns(limit int) ([]runstore.RunSummary, error)
}

// RunRequest is the POST /api/runs payload
type RunRequest struct {
	Source      string `json:"source"` // "local" or "github"
	LocalFolder string `json:"local_folder,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Folder      string `json:"folder,omitempty"`
	Model       string `json:"model,omitempty"`
	MaxFiles    int    `json:"max_files,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	DryRun      bool   `json:"dry_run"`
}

// RunFunc executes a run for a request, reporting progress through onEvent.
// It returns the run ID and the finished report.
type RunFunc func(ctx context.Context, req RunRequest, onEvent func(orchestrator.Event)) (string, *domain.RunReport, error)

// Server is the HTTP relay server
type Server struct {
	cfg    *config.Config
	store  RunStore
	runner RunFunc
	logger *zap.SugaredLogger
	addr   string
	mux    *http.ServeMux
	hub    *EventHub
}

// NewServer creates a relay server. store and runner may be nil in
// degraded setups; the corresponding endpoints then return 503.
func NewServer(cfg *config.Config, store RunStore, runner RunFunc, addr string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: logger,
		addr:   addr,
		mux:    http.NewServeMux(),
		hub:    NewEventHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/fetch", s.fetchHandler())
	s.mux.HandleFunc("/api/runs", s.runsHandler())
	s.mux.HandleFunc("/api/runs/", s.getRunHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/ws", s.wsHandler())
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Infow("relay listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routing mux, for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Broadcast fans an event out to all SSE and websocket clients
func (s *Server) Broadcast(event Event) {
	s.hub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
