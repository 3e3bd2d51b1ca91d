package strategy

import (
	"fmt"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/capture"
	"github.com/playcap/playcap/internal/codec"
	"github.com/playcap/playcap/internal/grant"
	"github.com/playcap/playcap/internal/logger"
)

// Playback captures the mixed output other applications are rendering,
// via a loopback input scoped to the broad usage allow-list. It is the
// preferred mechanism and requires a short-lived capture grant.
type Playback struct {
	engine *capture.Engine
	grants *grant.Holder
	log    *logger.Logger
}

// NewPlayback builds the playback strategy around a loopback input.
// The grant holder is shared with whoever runs the consent flow.
// bitrate overrides the compressed-stream target; zero keeps the codec
// default.
func NewPlayback(grants *grant.Holder, outDir string, bitrate int, log *logger.Logger) *Playback {
	return &Playback{
		engine: capture.New(capture.Config{
			Opener:    audio.LoopbackOpener{},
			Usages:    audio.BroadUsages(),
			OutputDir: outDir,
			NewEncoder: func() codec.Encoder {
				enc := codec.NewOpusEncoder()
				enc.Bitrate = bitrate
				return enc
			},
			Log: log,
		}),
		grants: grants,
		log:    log,
	}
}

// Name identifies the strategy.
func (p *Playback) Name() string { return "playback" }

// Priority ranks playback first among candidates.
func (p *Playback) Priority() int { return 1 }

// Available reports whether loopback capture could work right now:
// the backend must support loopback and a valid grant must be held.
func (p *Playback) Available() bool {
	g, err := p.grants.Current()
	probe := audio.CapabilityProbe{
		LoopbackSupported: audio.LoopbackSupported(),
		DeviceAvailable:   true,
		GrantHeld:         err == nil,
		GrantValid:        err == nil && g.Valid() && g.Allows(audio.BroadUsages()),
	}
	return probe.AllowsPlaybackCapture()
}

// Start validates the grant and launches a session. A second Start
// while running is a no-op.
func (p *Playback) Start(settings audio.Settings) error {
	if p.engine.Running() {
		return nil
	}

	if _, err := p.grants.Use(audio.BroadUsages()); err != nil {
		return fmt.Errorf("playback capture not authorized: %w", err)
	}

	return p.engine.Start(settings)
}

// Stop ends the session and returns its result.
func (p *Playback) Stop() *capture.Result {
	return p.engine.Stop()
}

// Running reports whether a session is active.
func (p *Playback) Running() bool { return p.engine.Running() }

// Result returns the last finished session.
func (p *Playback) Result() *capture.Result { return p.engine.LastResult() }

// Cleanup releases the held grant so another holder can reacquire it.
func (p *Playback) Cleanup() {
	p.grants.Release()
	p.log.Info("Playback strategy released its capture grant")
}
