// Package notify delivers run completion notifications to desktop and Slack.
package notify

import (
	"fmt"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title      string
	Message    string
	Type       NotificationType
	RunID      string // Optional run reference
	Descriptor string // Optional source descriptor
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// ForRun builds a completion notification from a finished run report
func ForRun(runID string, report *domain.RunReport) Notification {
	failures := report.FailureCount()
	cells := report.CellCount()

	n := Notification{
		Title:      "Scan finished",
		Message:    fmt.Sprintf("%d files, %d cells, %d failures", len(report.Results), cells, failures),
		Type:       NotifySuccess,
		RunID:      runID,
		Descriptor: report.Descriptor(),
	}
	switch {
	case cells > 0 && failures == cells:
		n.Type = NotifyError
		n.Title = "Scan failed"
	case failures > 0:
		n.Type = NotifyWarning
		n.Title = "Scan finished with failures"
	}
	return n
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
