package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// DeviceOpener opens PortAudio capture devices in blocking-read mode.
// It backs the narrower fallback strategy: the handle captures from a
// system capture device rather than tapping the render path directly.
type DeviceOpener struct {
	// DeviceID selects a specific input device; -1 means the system
	// default.
	DeviceID int
}

// MinBufferBytes returns the smallest read buffer PortAudio handles
// comfortably for the given settings (one 10ms block).
func (DeviceOpener) MinBufferBytes(s Settings) int {
	frames := s.SampleRate / 100
	if frames < 1 {
		frames = 1
	}
	return frames * s.FrameBytes()
}

// Open initializes PortAudio and opens a capture stream on the selected
// device. The stream is opened but not started; the engine starts it
// after verifying the initialized state.
func (o DeviceOpener) Open(s Settings, usages []Usage) (Input, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w: %v", ErrDeviceUnavailable, err)
	}

	device, err := o.selectDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	if device.MaxInputChannels < s.Channels {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("device %q supports %d input channels, need %d: %w",
			device.Name, device.MaxInputChannels, s.Channels, ErrDeviceUnavailable)
	}

	frames := o.MinBufferBytes(s) / s.FrameBytes()
	buf := make([]int16, frames*s.Channels)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: s.Channels,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      float64(s.SampleRate),
		FramesPerBuffer: frames,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open capture stream: %w: %v", ErrDeviceUnavailable, err)
	}

	return &deviceInput{
		stream: stream,
		buf:    buf,
		usages: usages,
		state:  StateInitialized,
	}, nil
}

// selectDevice resolves DeviceID to a PortAudio device, defaulting to
// the system default input.
func (o DeviceOpener) selectDevice() (*portaudio.DeviceInfo, error) {
	if o.DeviceID < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w: %v", ErrDeviceUnavailable, err)
	}
	if o.DeviceID >= len(devices) {
		return nil, fmt.Errorf("device ID %d out of range: %w", o.DeviceID, ErrDeviceUnavailable)
	}
	return devices[o.DeviceID], nil
}

// DeviceAvailable reports whether at least one capture device exists.
// Used to compute the per-attempt capability probe.
func DeviceAvailable() bool {
	if err := portaudio.Initialize(); err != nil {
		return false
	}
	defer portaudio.Terminate()
	device, err := portaudio.DefaultInputDevice()
	return err == nil && device != nil && device.MaxInputChannels > 0
}

// Device describes one capture device for the control surfaces.
type Device struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MaxChannels int    `json:"max_channels"`
	IsDefault   bool   `json:"is_default"`
}

// ListDevices enumerates the capture-capable PortAudio devices.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w: %v", ErrDeviceUnavailable, err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w: %v", ErrDeviceUnavailable, err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var devices []Device
	for i, d := range all {
		if d.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			ID:          i,
			Name:        d.Name,
			MaxChannels: d.MaxInputChannels,
			IsDefault:   def != nil && d.Name == def.Name,
		})
	}
	return devices, nil
}

// deviceInput is a blocking-read PortAudio capture handle.
type deviceInput struct {
	stream *portaudio.Stream
	buf    []int16
	usages []Usage

	mu    sync.Mutex
	state InputState
}

func (in *deviceInput) setState(s InputState) {
	in.mu.Lock()
	in.state = s
	in.mu.Unlock()
}

// Start begins the stream. Idempotent while recording.
func (in *deviceInput) Start() error {
	if in.stream == nil {
		return ErrNotInitialized
	}
	if in.State() == StateRecording {
		return nil
	}
	if err := in.stream.Start(); err != nil {
		return fmt.Errorf("start capture stream: %w: %v", ErrDeviceUnavailable, err)
	}
	in.setState(StateRecording)
	return nil
}

// Read blocks until PortAudio fills one chunk, then copies it to dst.
// Input overflow is not fatal; the overflowed chunk is still delivered.
func (in *deviceInput) Read(dst []int16) (int, error) {
	if in.stream == nil {
		return 0, ErrNotInitialized
	}
	if err := in.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			// Samples were dropped by the host; what we have is valid.
		} else {
			return 0, fmt.Errorf("read capture stream: %v", err)
		}
	}
	n := copy(dst, in.buf)
	return n, nil
}

// State reports the handle state.
func (in *deviceInput) State() InputState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Stop halts the stream, keeping it open for restart.
func (in *deviceInput) Stop() error {
	if in.stream == nil {
		return nil
	}
	if in.State() != StateRecording {
		return nil
	}
	if err := in.stream.Stop(); err != nil {
		return fmt.Errorf("stop capture stream: %v", err)
	}
	in.setState(StateStopped)
	return nil
}

// Close releases the stream and terminates PortAudio.
func (in *deviceInput) Close() error {
	if in.stream != nil {
		_ = in.stream.Close()
		in.stream = nil
	}
	in.setState(StateClosed)
	return portaudio.Terminate()
}

// Usages returns the usage filter the handle was opened with.
func (in *deviceInput) Usages() []Usage {
	return in.usages
}
