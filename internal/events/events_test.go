package events

import (
	"testing"
	"time"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()

	var first, second []Event
	b.Subscribe(func(e Event) { first = append(first, e) })
	b.Subscribe(func(e Event) { second = append(second, e) })

	b.Publish(CaptureAttempt{Strategy: "playback"})
	b.Publish(CaptureSuccess{Strategy: "playback", Duration: time.Second, Bytes: 32000})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("Expected both subscribers to see 2 events, got %d and %d", len(first), len(second))
	}

	attempt, ok := first[0].(CaptureAttempt)
	if !ok || attempt.Strategy != "playback" {
		t.Errorf("Expected CaptureAttempt{playback}, got %#v", first[0])
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	var got int
	id := b.Subscribe(func(Event) { got++ })

	b.Publish(CaptureAttempt{Strategy: "device"})
	b.Unsubscribe(id)
	b.Publish(CaptureError{Strategy: "device", Category: "hardware-unavailable", Message: "gone"})

	if got != 1 {
		t.Errorf("Expected 1 delivery after unsubscribe, got %d", got)
	}
	if b.Count() != 0 {
		t.Errorf("Expected 0 subscriptions, got %d", b.Count())
	}

	// Unknown IDs are ignored.
	b.Unsubscribe(999)
}

func TestBus_SynchronousDelivery(t *testing.T) {
	b := NewBus()

	delivered := false
	b.Subscribe(func(e Event) {
		if _, ok := e.(StrategySwitch); ok {
			delivered = true
		}
	})

	b.Publish(StrategySwitch{From: "playback", To: "device", Reason: "loopback lost"})

	// Publish returns only after every handler has run.
	if !delivered {
		t.Error("Expected handler to run before Publish returned")
	}
}
