package strategy

import (
	"errors"
	"sync"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/codec"
	"github.com/playcap/playcap/internal/grant"
)

// Category classifies a capture failure for recovery purposes.
type Category int

const (
	// CategoryUnknown covers failures nothing else matches. Treated
	// like hardware for retry purposes.
	CategoryUnknown Category = iota
	// CategoryInstability means the platform audio service itself
	// failed; retrying the same strategy would hit the same crash.
	CategoryInstability
	// CategoryPermission means authorization was missing, expired or
	// denied. Never retried; the user has to act.
	CategoryPermission
	// CategoryHardware means a device was missing or busy, which is
	// often transient.
	CategoryHardware
	// CategoryCodec means the compressed encoder could not be set up.
	// The session cannot honor its write contract, so this is fatal.
	CategoryCodec
)

// String returns the category name used in events and logs.
func (c Category) String() string {
	switch c {
	case CategoryInstability:
		return "system-instability"
	case CategoryPermission:
		return "permission-denied"
	case CategoryHardware:
		return "hardware-unavailable"
	case CategoryCodec:
		return "codec-failure"
	default:
		return "unknown"
	}
}

// Classify maps an error to its recovery category via the sentinel
// errors of the audio, grant and codec packages.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, audio.ErrServiceCrashed):
		return CategoryInstability
	case errors.Is(err, grant.ErrDenied),
		errors.Is(err, grant.ErrExpired),
		errors.Is(err, grant.ErrNotHeld),
		errors.Is(err, grant.ErrUsageNotAllowed):
		return CategoryPermission
	case errors.Is(err, audio.ErrDeviceUnavailable),
		errors.Is(err, audio.ErrLoopbackUnsupported),
		errors.Is(err, audio.ErrNotInitialized):
		return CategoryHardware
	case errors.Is(err, codec.ErrEncoderInit):
		return CategoryCodec
	default:
		return CategoryUnknown
	}
}

// maxAttempts returns how many times a strategy may be tried for
// failures in the given category before demotion.
func maxAttempts(c Category) int {
	switch c {
	case CategoryHardware, CategoryUnknown:
		return 3
	default:
		return 1
	}
}

// Classifier keeps process-lifetime failure counters per category. A
// counter resets when capture later succeeds after failures in that
// category, so old incidents do not poison future recovery decisions.
type Classifier struct {
	mu       sync.Mutex
	failures map[Category]int
}

// NewClassifier returns a classifier with zeroed counters.
func NewClassifier() *Classifier {
	return &Classifier{failures: make(map[Category]int)}
}

// Record classifies err, increments its category counter and returns
// the category.
func (c *Classifier) Record(err error) Category {
	cat := Classify(err)
	c.mu.Lock()
	c.failures[cat]++
	c.mu.Unlock()
	return cat
}

// Failures returns the lifetime failure count for a category.
func (c *Classifier) Failures(cat Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[cat]
}

// MarkRecovered clears the counters of every category that had
// failures, reflecting that capture is working again.
func (c *Classifier) MarkRecovered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for cat := range c.failures {
		delete(c.failures, cat)
	}
}
