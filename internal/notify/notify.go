// Package notify sends desktop notifications for capture lifecycle
// events. The events bus drives it; nothing else in the pipeline
// depends on notifications succeeding.
package notify

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/playcap/playcap/internal/events"
	"github.com/playcap/playcap/internal/logger"
)

// Notifier sends desktop notifications via the platform notification
// service.
type Notifier struct {
	appName string
	log     *logger.Logger

	// send is swappable for tests; defaults to beeep.Notify.
	send func(title, message, icon string) error
}

// New creates a notifier.
func New(appName string, log *logger.Logger) *Notifier {
	return &Notifier{
		appName: appName,
		log:     log,
		send:    beeep.Notify,
	}
}

// Send delivers one notification. Failures are logged, not propagated;
// a missing notification daemon must never affect capture.
func (n *Notifier) Send(title, message string) {
	if err := n.send(title, message, ""); err != nil {
		n.log.Warn("Desktop notification failed: %v", err)
	}
}

// CaptureFinished announces a completed session with its size and
// duration.
func (n *Notifier) CaptureFinished(bytes int64, duration time.Duration) {
	n.Send(n.appName, fmt.Sprintf("Capture finished: %s in %s",
		formatBytes(bytes), duration.Round(time.Second)))
}

// NothingPlaying announces a session that recorded only silence.
func (n *Notifier) NothingPlaying() {
	n.Send(n.appName, "Capture finished, but no application was playing audio")
}

// CaptureFailed announces an unrecoverable capture error.
func (n *Notifier) CaptureFailed(reason string) {
	msg := "Capture failed"
	if reason != "" {
		msg += ": " + reason
	}
	n.Send(n.appName, msg)
}

// StrategyFallback announces a degraded capture mechanism.
func (n *Notifier) StrategyFallback(to string) {
	n.Send(n.appName, fmt.Sprintf("Capture continuing with fallback mechanism (%s)", to))
}

// PermissionDenied announces missing capture authorization.
func (n *Notifier) PermissionDenied() {
	n.Send(n.appName, "Audio capture is not authorized. Grant permission and try again.")
}

// Attach subscribes the notifier to the diagnostics bus and returns
// the subscription ID.
func (n *Notifier) Attach(bus *events.Bus) int {
	return bus.Subscribe(func(e events.Event) {
		switch ev := e.(type) {
		case events.CaptureSuccess:
			n.CaptureFinished(ev.Bytes, ev.Duration)
		case events.CaptureError:
			if ev.Category == "permission-denied" {
				n.PermissionDenied()
			}
		case events.StrategySwitch:
			if ev.Reason != "requested" {
				n.StrategyFallback(ev.To)
			}
		}
	})
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
