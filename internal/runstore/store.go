// Package runstore provides SQLite-backed persistence for run reports
// and scheduled scan history.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// Store persists run reports
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the database at dbPath
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RunSummary is the list view of a stored run
type RunSummary struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Descriptor string    `json:"descriptor"`
	Model      string    `json:"model"`
	Files      int       `json:"files"`
	Cells      int       `json:"cells"`
	Failures   int       `json:"failures"`
	DryRun     bool      `json:"dry_run"`
	CreatedAt  time.Time `json:"created_at"`
}

// SaveRun stores a finished run's report under its run ID
func (s *Store) SaveRun(runID string, report *domain.RunReport, dryRun bool) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, source, descriptor, model, output_dir, files, cells, failures, dry_run, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			files = excluded.files,
			cells = excluded.cells,
			failures = excluded.failures,
			report = excluded.report
	`,
		runID,
		string(report.Source),
		report.Descriptor(),
		report.Model,
		report.OutputDir,
		len(report.Results),
		report.CellCount(),
		report.FailureCount(),
		dryRun,
		string(reportJSON),
		time.Now(),
	)
	return err
}

// GetRun retrieves a stored report by run ID
func (s *Store) GetRun(runID string) (*domain.RunReport, error) {
	var reportJSON string
	err := s.db.QueryRow(`SELECT report FROM runs WHERE id = ?`, runID).Scan(&reportJSON)
	if err != nil {
		return nil, err
	}

	var report domain.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	query := `SELECT id, source, descriptor, model, files, cells, failures, dry_run, created_at
		FROM runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.Descriptor, &r.Model, &r.Files, &r.Cells, &r.Failures, &r.DryRun, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// RecordScanStart logs the start of a scheduled scan and returns the row ID
func (s *Store) RecordScanStart(name string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO scans (name, started_at) VALUES (?, ?)`, name, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordScanFinish completes a scan row with its run ID and error, if any
func (s *Store) RecordScanFinish(scanID int64, runID string, scanErr error) error {
	errText := ""
	if scanErr != nil {
		errText = scanErr.Error()
	}
	var runRef sql.NullString
	if runID != "" {
		runRef = sql.NullString{String: runID, Valid: true}
	}
	_, err := s.db.Exec(`UPDATE scans SET run_id = ?, finished_at = ?, error = ? WHERE id = ?`,
		runRef, time.Now(), errText, scanID)
	return err
}
