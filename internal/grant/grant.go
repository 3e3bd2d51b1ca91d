package grant

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playcap/playcap/internal/audio"
)

// Sentinel errors for grant handling.
var (
	// ErrNotHeld indicates no grant is currently held by the holder.
	ErrNotHeld = errors.New("capture grant not held")

	// ErrExpired indicates the held grant's validity window has passed.
	ErrExpired = errors.New("capture grant expired")

	// ErrDenied indicates the consent flow refused to issue a grant.
	// Non-recoverable without user action.
	ErrDenied = errors.New("capture permission denied")

	// ErrUsageNotAllowed indicates a requested usage is outside the
	// grant's allow-list.
	ErrUsageNotAllowed = errors.New("usage not covered by capture grant")
)

// Grant is an opaque, time-bounded authorization to capture audio
// rendered by other applications. It is issued by a consent flow outside
// this module; the capture core only consumes it to scope a handle and
// releases it when done.
type Grant struct {
	Token    uuid.UUID
	Usages   []audio.Usage
	IssuedAt time.Time
	Expiry   time.Time
}

// New issues a grant valid for ttl covering the given usages. In
// production the grant arrives from the platform consent flow; New
// exists for the daemon bootstrap and for tests.
func New(usages []audio.Usage, ttl time.Duration) Grant {
	now := time.Now()
	return Grant{
		Token:    uuid.New(),
		Usages:   usages,
		IssuedAt: now,
		Expiry:   now.Add(ttl),
	}
}

// Valid reports whether the grant is usable right now.
func (g Grant) Valid() bool {
	return g.Token != uuid.Nil && time.Now().Before(g.Expiry)
}

// Allows reports whether every requested usage is on the grant's
// allow-list.
func (g Grant) Allows(usages []audio.Usage) bool {
	allowed := make(map[audio.Usage]bool, len(g.Usages))
	for _, u := range g.Usages {
		allowed[u] = true
	}
	for _, u := range usages {
		if !allowed[u] {
			return false
		}
	}
	return true
}

// Holder owns a grant exclusively for the strategy that acquired it.
// Cleanup on the owning strategy must call Release so another strategy
// or a future session can reacquire.
type Holder struct {
	mu    sync.Mutex
	grant *Grant
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Hold takes exclusive ownership of the grant. Holding while another
// grant is present replaces it; the previous grant is considered
// relinquished.
func (h *Holder) Hold(g Grant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grant = &g
}

// Held reports whether a grant is currently held, valid or not.
func (h *Holder) Held() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grant != nil
}

// Current returns the held grant.
func (h *Holder) Current() (Grant, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.grant == nil {
		return Grant{}, ErrNotHeld
	}
	return *h.grant, nil
}

// Use validates the held grant against the requested usages and returns
// it for scoping a capture handle.
func (h *Holder) Use(usages []audio.Usage) (Grant, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.grant == nil {
		return Grant{}, ErrNotHeld
	}
	if !h.grant.Valid() {
		return Grant{}, fmt.Errorf("grant %s: %w", h.grant.Token, ErrExpired)
	}
	if !h.grant.Allows(usages) {
		return Grant{}, ErrUsageNotAllowed
	}
	return *h.grant, nil
}

// Release relinquishes the held grant. Idempotent.
func (h *Holder) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grant = nil
}
