package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/playcap/playcap/internal/events"
	"github.com/playcap/playcap/internal/logger"
)

func newTestNotifier(t *testing.T) (*Notifier, *[]string) {
	t.Helper()
	log, err := logger.New(logger.Config{LogDir: t.TempDir(), Level: logger.ERROR, RetentionDays: 1})
	if err != nil {
		t.Fatalf("logger setup failed: %v", err)
	}

	var sent []string
	n := New("PlayCap", log)
	n.send = func(title, message, icon string) error {
		sent = append(sent, title+": "+message)
		return nil
	}
	return n, &sent
}

func TestNotifier_CaptureFinished(t *testing.T) {
	n, sent := newTestNotifier(t)

	n.CaptureFinished(64000, 2*time.Second)

	if len(*sent) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(*sent))
	}
	if !strings.Contains((*sent)[0], "62.5 KB") {
		t.Errorf("Expected formatted byte count, got %q", (*sent)[0])
	}
	if !strings.Contains((*sent)[0], "2s") {
		t.Errorf("Expected duration, got %q", (*sent)[0])
	}
}

func TestNotifier_AttachRoutesEvents(t *testing.T) {
	n, sent := newTestNotifier(t)
	bus := events.NewBus()
	n.Attach(bus)

	bus.Publish(events.CaptureSuccess{Strategy: "playback", Duration: time.Second, Bytes: 32000})
	bus.Publish(events.CaptureError{Strategy: "playback", Category: "permission-denied", Message: "denied"})
	bus.Publish(events.CaptureError{Strategy: "playback", Category: "hardware-unavailable", Message: "busy"})
	bus.Publish(events.StrategySwitch{From: "playback", To: "device", Reason: "loopback lost"})
	bus.Publish(events.StrategySwitch{From: "playback", To: "device", Reason: "requested"})

	// Success, permission error and fallback notify; transient hardware
	// errors and user-requested switches stay quiet.
	if len(*sent) != 3 {
		t.Fatalf("Expected 3 notifications, got %d: %v", len(*sent), *sent)
	}
	if !strings.Contains((*sent)[1], "not authorized") {
		t.Errorf("Expected permission message, got %q", (*sent)[1])
	}
	if !strings.Contains((*sent)[2], "fallback") {
		t.Errorf("Expected fallback message, got %q", (*sent)[2])
	}
}

func TestNotifier_SendFailureIsSwallowed(t *testing.T) {
	n, _ := newTestNotifier(t)
	n.send = func(string, string, string) error { return errTest }

	// Must not panic or propagate.
	n.CaptureFailed("device gone")
}

var errTest = &notifyErr{}

type notifyErr struct{}

func (*notifyErr) Error() string { return "notification daemon missing" }
