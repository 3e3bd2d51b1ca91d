package strategy

import (
	"fmt"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/capture"
	"github.com/playcap/playcap/internal/codec"
	"github.com/playcap/playcap/internal/grant"
	"github.com/playcap/playcap/internal/logger"
)

// Device is the fallback mechanism: a PortAudio capture handle
// restricted to the narrow usage set. It is usable only when the caller
// already holds a valid grant; it never initiates a consent flow.
type Device struct {
	engine *capture.Engine
	grants *grant.Holder
	log    *logger.Logger
}

// NewDevice builds the device strategy. deviceID selects the capture
// device; -1 means the host default. bitrate overrides the
// compressed-stream target; zero keeps the codec default.
func NewDevice(grants *grant.Holder, outDir string, deviceID, bitrate int, log *logger.Logger) *Device {
	return &Device{
		engine: capture.New(capture.Config{
			Opener:    audio.DeviceOpener{DeviceID: deviceID},
			Usages:    audio.NarrowUsages(),
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
func (d *Device) Name() string { return "device" }

// Priority ranks the device fallback after playback.
func (d *Device) Priority() int { return 2 }

// Available reports whether a capture device exists and the held grant
// covers the narrow usage set.
func (d *Device) Available() bool {
	g, err := d.grants.Current()
	probe := audio.CapabilityProbe{
		LoopbackSupported: true,
		DeviceAvailable:   audio.DeviceAvailable(),
		GrantHeld:         err == nil,
		GrantValid:        err == nil && g.Valid() && g.Allows(audio.NarrowUsages()),
	}
	return probe.AllowsDeviceCapture()
}

// Start validates the pre-held grant and launches a session. A second
// Start while running is a no-op.
func (d *Device) Start(settings audio.Settings) error {
	if d.engine.Running() {
		return nil
	}

	if _, err := d.grants.Use(audio.NarrowUsages()); err != nil {
		return fmt.Errorf("device capture not authorized: %w", err)
	}

	return d.engine.Start(settings)
}

// Stop ends the session and returns its result.
func (d *Device) Stop() *capture.Result {
	return d.engine.Stop()
}

// Running reports whether a session is active.
func (d *Device) Running() bool { return d.engine.Running() }

// Result returns the last finished session.
func (d *Device) Result() *capture.Result { return d.engine.LastResult() }

// Cleanup releases the held grant.
func (d *Device) Cleanup() {
	d.grants.Release()
	d.log.Info("Device strategy released its capture grant")
}
