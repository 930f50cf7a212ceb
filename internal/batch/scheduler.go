// Package batch schedules recurring scans from a TOML schedule file.
package batch

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages scheduled scans
type Scheduler struct {
	jobs     map[string]ScanJob
	parser   cron.Parser
	lastRun  map[string]time.Time
	running  map[string]bool
	mu       sync.RWMutex
	logger   *zap.SugaredLogger
	stopChan chan struct{}
}

// NewScheduler creates a scheduler for the given scan jobs
func NewScheduler(jobs []ScanJob, logger *zap.SugaredLogger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Scheduler{
		jobs:     make(map[string]ScanJob),
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun:  make(map[string]time.Time),
		running:  make(map[string]bool),
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return nil, err
		}
		s.jobs[job.Name] = job
	}

	return s, nil
}

// ParseCron parses a standard 5-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled time for a scan
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return time.Time{}
	}

	sched, err := s.parser.Parse(job.Cron)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(time.Now())
}

// ShouldRun returns true if a scan is due and not already running
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return false
	}

	if s.running[name] {
		return false
	}

	sched, err := s.parser.Parse(job.Cron)
	if err != nil {
		return false
	}

	lastRun := s.lastRun[name]
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-24 * time.Hour)
	}

	nextRun := sched.Next(lastRun)
	return time.Now().After(nextRun)
}

// MarkRunning marks a scan as currently running
func (s *Scheduler) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
}

// MarkComplete marks a scan as finished
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = time.Now()
}

// GetJob returns a scan job by name
func (s *Scheduler) GetJob(name string) (ScanJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[name]
	return job, ok
}

// ListScans returns all scan names
func (s *Scheduler) ListScans() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start polls once a minute and launches due scans. It blocks until Stop.
func (s *Scheduler) Start(runFunc func(ScanJob) error) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			for name := range s.jobs {
				if s.ShouldRun(name) {
					job, _ := s.GetJob(name)
					s.MarkRunning(name)
					go func(j ScanJob) {
						if err := runFunc(j); err != nil {
							s.logger.Warnw("scheduled scan failed", "scan", j.Name, "error", err)
						}
						s.MarkComplete(j.Name)
					}(job)
				}
			}
		}
	}
}

// Stop stops the scheduler loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
