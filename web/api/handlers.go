package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
	"github.com/seclens/vulnfix-orchestrator/internal/runstore"
	"github.com/seclens/vulnfix-orchestrator/internal/source"
)

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Runs     int `json:"runs"`
	Failures int `json:"failures"`
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "run store not available")
			return
		}

		runs, err := s.store.ListRuns(0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var status StatusResponse
		status.Runs = len(runs)
		for _, run := range runs {
			status.Failures += run.Failures
		}
		writeJSON(w, status)
	}
}

// fetchHandler streams source enumeration as NDJSON: one JSON object per
// file, flushed as it arrives. A failure after streaming began is reported
// as a final {"error": ...} line, since the status code is already sent.
func (s *Server) fetchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		provider, err := s.providerFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")

		enc := json.NewEncoder(w)
		err = provider.Stream(r.Context(), func(file domain.SourceFile) error {
			if err := enc.Encode(file); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
		if err != nil {
			enc.Encode(map[string]string{"error": err.Error()})
			flusher.Flush()
		}
	}
}

// providerFromQuery builds a source provider from /api/fetch query params
func (s *Server) providerFromQuery(r *http.Request) (source.Provider, error) {
	q := r.URL.Query()
	opts := source.Options{MaxFiles: s.cfg.Analysis.MaxFiles}
	if raw := q.Get("max_files"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid max_files %q", raw)
		}
		opts.MaxFiles = n
	}

	if local := q.Get("local"); local != "" {
		return source.NewLocalProvider(local, opts), nil
	}

	owner, repo := q.Get("owner"), q.Get("repo")
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("need either local= or owner= and repo=")
	}
	branch := q.Get("branch")
	if branch == "" {
		branch = "main"
	}
	ref := domain.GitHubRef{Owner: owner, Repo: repo, Branch: branch, Folder: q.Get("folder")}
	return source.NewGitHubProvider(ref, s.cfg.API.GitHubToken, opts), nil
}

func (s *Server) runsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.listRuns(w, r)
		case http.MethodPost:
			s.startRun(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []runstore.RunSummary{}
	}
	writeJSON(w, runs)
}

// startRun launches a run in the background and returns its ID immediately.
// Progress flows to subscribers via /api/events and /api/ws.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner not available")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validateRunRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	started := make(chan string, 1)
	go func() {
		// Events arrive concurrently when the run uses multiple workers;
		// only the first one may deliver the run ID.
		var sendID sync.Once
		runID, report, err := s.runner(context.Background(), req, func(ev orchestrator.Event) {
			sendID.Do(func() { started <- ev.RunID })
			s.Broadcast(Event{Type: string(ev.Type), Data: ev})
		})
		sendID.Do(func() { started <- runID })
		if err != nil {
			s.logger.Warnw("run failed", "error", err)
			s.Broadcast(Event{Type: "run_error", Data: map[string]string{"error": err.Error()}})
			return
		}
		if s.store != nil && report != nil {
			if err := s.store.SaveRun(runID, report, req.DryRun); err != nil {
				s.logger.Warnw("saving run failed", "run_id", runID, "error", err)
			}
		}
	}()

	runID := <-started
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": runID, "status": "started"})
}

func validateRunRequest(req *RunRequest) error {
	switch req.Source {
	case "local":
		if req.LocalFolder == "" {
			return fmt.Errorf("local_folder is required for local runs")
		}
	case "github":
		if req.Owner == "" || req.Repo == "" {
			return fmt.Errorf("owner and repo are required for github runs")
		}
		if req.Branch == "" {
			req.Branch = "main"
		}
	default:
		return fmt.Errorf("source must be \"local\" or \"github\"")
	}
	return nil
}

func (s *Server) getRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "run store not available")
			return
		}

		runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if runID == "" {
			writeError(w, http.StatusBadRequest, "run ID required")
			return
		}

		report, err := s.store.GetRun(runID)
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, report)
	}
}
