// Package events carries typed diagnostics events from the capture
// pipeline to interested subscribers (tray, notifications, logs).
package events

import (
	"sync"
	"time"
)

// CaptureAttempt is published when a strategy is about to start.
type CaptureAttempt struct {
	Strategy string
}

// CaptureSuccess is published when a session finishes cleanly.
type CaptureSuccess struct {
	Strategy string
	Duration time.Duration
	Bytes    int64
}

// CaptureError is published when a strategy or session fails.
type CaptureError struct {
	Strategy string
	Category string
	Message  string
}

// StrategySwitch is published when the active strategy changes,
// whether by fallback or by an explicit switch request.
type StrategySwitch struct {
	From   string
	To     string
	Reason string
}

// Event is one of the types above.
type Event interface{}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine, so they must return quickly and must not call
// back into the publisher.
type Handler func(Event)

// Bus is a subscriber-list publisher. Subscriptions are identified by
// an integer ID so individual subscribers can detach.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns its subscription ID.
func (b *Bus) Subscribe(h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs[b.next] = h
	return b.next
}

// Unsubscribe removes the subscription with the given ID. Unknown IDs
// are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish delivers e to every subscriber, synchronously, in
// unspecified order.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

// Count returns the number of active subscriptions.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
