package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// loopbackPeriodMs is the device period requested from miniaudio.
const loopbackPeriodMs = 10

// defaultReadWait bounds how long one Read waits for a full chunk before
// reporting a stall.
const defaultReadWait = 500 * time.Millisecond

// LoopbackOpener opens miniaudio loopback devices: capture handles that
// receive the audio other applications are currently rendering, scoped
// to a usage allow-list.
type LoopbackOpener struct{}

// MinBufferBytes returns one device period worth of samples for the
// given settings.
func (LoopbackOpener) MinBufferBytes(s Settings) int {
	frames := s.SampleRate * loopbackPeriodMs / 1000
	if frames < 1 {
		frames = 1
	}
	return frames * s.FrameBytes()
}

// Open opens the default render device in loopback mode. The returned
// input delivers interleaved S16LE chunks pulled from the device
// callback; the usage filter travels with the handle configuration.
func (o LoopbackOpener) Open(s Settings, usages []Usage) (Input, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w: %v", ErrLoopbackUnsupported, err)
	}

	in := &loopbackInput{
		ctx:      ctx,
		settings: s,
		usages:   usages,
		frames:   make(chan []byte, 64),
		readWait: defaultReadWait,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Loopback)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(s.Channels)
	cfg.SampleRate = uint32(s.SampleRate)
	cfg.PeriodSizeInFrames = uint32(s.SampleRate * loopbackPeriodMs / 1000)

	callbacks := malgo.DeviceCallbacks{
		Data: in.onData,
		Stop: in.onDeviceStop,
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("open loopback device: %w: %v", ErrLoopbackUnsupported, err)
	}

	in.dev = dev
	in.setState(StateInitialized)
	return in, nil
}

// LoopbackSupported probes whether the miniaudio backend can be brought
// up at all on this host. It opens and immediately releases a context,
// so it is safe to call repeatedly.
func LoopbackSupported() bool {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false
	}
	_ = ctx.Uninit()
	ctx.Free()
	return true
}

// loopbackInput adapts miniaudio's push-style callback delivery to the
// engine's pull-style fixed-chunk reads.
type loopbackInput struct {
	ctx      *malgo.AllocatedContext
	dev      *malgo.Device
	settings Settings
	usages   []Usage

	frames   chan []byte
	pending  []byte
	readWait time.Duration

	// set by the miniaudio stop callback when the device halts on its
	// own, which the engine must treat as service instability
	deviceDied atomic.Bool
	stopping   atomic.Bool

	mu    sync.Mutex
	state InputState
}

// onData runs on the miniaudio device thread. It copies the period into
// the frame queue and drops the period when the reader lags; blocking
// the audio thread is worse than a dropped period.
func (in *loopbackInput) onData(_, pInputSamples []byte, _ uint32) {
	b := make([]byte, len(pInputSamples))
	copy(b, pInputSamples)
	select {
	case in.frames <- b:
	default:
	}
}

// onDeviceStop runs when miniaudio halts the device. A halt we did not
// request means the backend collapsed underneath us.
func (in *loopbackInput) onDeviceStop() {
	if !in.stopping.Load() {
		in.deviceDied.Store(true)
	}
}

func (in *loopbackInput) setState(s InputState) {
	in.mu.Lock()
	in.state = s
	in.mu.Unlock()
}

// Start begins loopback delivery. Idempotent while recording.
func (in *loopbackInput) Start() error {
	if in.dev == nil {
		return ErrNotInitialized
	}
	if in.State() == StateRecording {
		return nil
	}
	in.stopping.Store(false)
	in.deviceDied.Store(false)
	if err := in.dev.Start(); err != nil {
		return fmt.Errorf("start loopback device: %w: %v", ErrDeviceUnavailable, err)
	}
	in.setState(StateRecording)
	return nil
}

// Read assembles one full chunk from queued device periods. It returns
// (0, nil) when no complete chunk arrives within the wait window; any
// partial data is kept for the next call so framing is preserved.
func (in *loopbackInput) Read(dst []int16) (int, error) {
	if in.dev == nil {
		return 0, ErrNotInitialized
	}
	if in.deviceDied.Load() {
		in.setState(StateStopped)
		return 0, fmt.Errorf("loopback device halted unexpectedly: %w", ErrServiceCrashed)
	}

	want := len(dst) * BytesPerSample
	deadline := time.NewTimer(in.readWait)
	defer deadline.Stop()

	for len(in.pending) < want {
		select {
		case b, ok := <-in.frames:
			if !ok {
				return 0, fmt.Errorf("loopback frame queue closed: %w", ErrServiceCrashed)
			}
			in.pending = append(in.pending, b...)
		case <-deadline.C:
			// Stall: no complete chunk in time. Keep the partial bytes.
			return 0, nil
		}
	}

	for i := 0; i < len(dst); i++ {
		dst[i] = int16(uint16(in.pending[2*i]) | uint16(in.pending[2*i+1])<<8)
	}
	in.pending = in.pending[want:]
	return len(dst), nil
}

// State reports the handle state, degraded to Stopped when the device
// halted on its own.
func (in *loopbackInput) State() InputState {
	if in.deviceDied.Load() {
		return StateStopped
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == StateRecording && in.dev != nil && !in.dev.IsStarted() {
		return StateStopped
	}
	return in.state
}

// Stop halts delivery, keeping the device open for restart.
func (in *loopbackInput) Stop() error {
	if in.dev == nil {
		return nil
	}
	if in.State() != StateRecording {
		return nil
	}
	in.stopping.Store(true)
	if err := in.dev.Stop(); err != nil {
		return fmt.Errorf("stop loopback device: %v", err)
	}
	in.setState(StateStopped)
	return nil
}

// Close releases the device and the backend context.
func (in *loopbackInput) Close() error {
	in.stopping.Store(true)
	if in.dev != nil {
		in.dev.Uninit()
		in.dev = nil
	}
	if in.ctx != nil {
		_ = in.ctx.Uninit()
		in.ctx.Free()
		in.ctx = nil
	}
	in.setState(StateClosed)
	return nil
}

// Usages returns the usage filter the handle was opened with.
func (in *loopbackInput) Usages() []Usage {
	return in.usages
}
