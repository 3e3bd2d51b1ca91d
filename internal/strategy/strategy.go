// Package strategy selects and supervises the mechanism used to capture
// system playback audio, falling back between mechanisms when one fails.
package strategy

import (
	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/capture"
)

// Strategy is one capture mechanism. Implementations must never panic
// out of Start; any setup failure is a returned error.
type Strategy interface {
	// Name identifies the strategy in events, logs and the control API.
	Name() string

	// Priority orders candidates; lower runs first.
	Priority() int

	// Available probes whether the mechanism could work right now. It
	// is side-effect-free and safe to call repeatedly.
	Available() bool

	// Start begins a capture session with the given settings.
	// Idempotent while running.
	Start(audio.Settings) error

	// Stop ends the session and joins its worker, returning the
	// session result. Idempotent; returns the last result when no
	// session is active.
	Stop() *capture.Result

	// Running reports whether a session is active.
	Running() bool

	// Result returns the most recent finished session, or nil.
	Result() *capture.Result

	// Cleanup releases long-lived resources beyond what Stop releases,
	// such as a held authorization grant.
	Cleanup()
}
