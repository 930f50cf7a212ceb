package notify

import (
	"fmt"
	"os/exec"
	"runtime"
)

// DesktopNotifier surfaces scan completions on the local desktop
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a new desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send shows the notification, with the source descriptor in the body and
// the severity reflected in the platform payload
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return d.sendMacOS(n)
	case "linux":
		return d.sendLinux(n)
	default:
		return nil // Unsupported
	}
}

func (d *DesktopNotifier) sendMacOS(n Notification) error {
	script := `display notification "` + body(n) + `" with title "` + n.Title + `"`
	if n.Type == NotifyError {
		script += ` sound name "Basso"`
	}
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func (d *DesktopNotifier) sendLinux(n Notification) error {
	urgency := "normal"
	if n.Type == NotifyError {
		urgency = "critical"
	}
	cmd := exec.Command("notify-send", "-u", urgency, "-i", iconForType(n.Type), n.Title, body(n))
	return cmd.Run()
}

// body prefixes the message with the scanned source when it is known
func body(n Notification) string {
	if n.Descriptor == "" {
		return n.Message
	}
	return fmt.Sprintf("%s: %s", n.Descriptor, n.Message)
}

// iconForType maps a severity to a freedesktop icon name
func iconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
