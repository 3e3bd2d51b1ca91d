package audio

import "errors"

// Usage identifies the purpose a rendering application declared for its
// audio output. A capture handle is scoped to a set of usages; the
// platform mixer only routes matching streams into the handle.
type Usage int

const (
	// UsageMedia covers music and video playback
	UsageMedia Usage = iota
	// UsageGame covers game audio
	UsageGame
	// UsageNotification covers notification sounds
	UsageNotification
	// UsageVoice covers voice call and VoIP audio
	UsageVoice
	// UsageAlarm covers alarm and timer sounds
	UsageAlarm
	// UsageAssistant covers voice assistant responses
	UsageAssistant
)

// String returns the string representation of the usage
func (u Usage) String() string {
	switch u {
	case UsageMedia:
		return "media"
	case UsageGame:
		return "game"
	case UsageNotification:
		return "notification"
	case UsageVoice:
		return "voice"
	case UsageAlarm:
		return "alarm"
	case UsageAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// BroadUsages returns the full allow-list used by the playback capture
// strategy, so that as much rendered audio as possible is captured.
func BroadUsages() []Usage {
	return []Usage{
		UsageMedia,
		UsageGame,
		UsageNotification,
		UsageVoice,
		UsageAlarm,
		UsageAssistant,
	}
}

// NarrowUsages returns the restricted usage set used by the fallback
// device capture strategy.
func NarrowUsages() []Usage {
	return []Usage{UsageMedia, UsageGame}
}

// Sentinel errors for the capture input layer. Wrap with context at the
// call site using fmt.Errorf and %w; errors.Is drives the recovery
// policy in the strategy package.
var (
	// ErrLoopbackUnsupported indicates the platform backend cannot open a
	// loopback (rendered-audio) capture device.
	ErrLoopbackUnsupported = errors.New("loopback capture not supported")

	// ErrDeviceUnavailable indicates no usable capture device was found
	// or the device refused to open.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrServiceCrashed indicates the system audio service terminated or
	// misbehaved underneath an open handle. Never retried on the same
	// strategy.
	ErrServiceCrashed = errors.New("audio service crashed")

	// ErrNotInitialized indicates an input handle never reached the
	// initialized state and must not be used.
	ErrNotInitialized = errors.New("capture input not initialized")
)

// CapabilityProbe is the result of probing the environment once per
// capture attempt. It is a plain value so tests can construct it
// directly instead of mocking platform checks.
type CapabilityProbe struct {
	// LoopbackSupported reports whether the backend can capture audio
	// rendered by other applications.
	LoopbackSupported bool
	// DeviceAvailable reports whether at least one capture device exists.
	DeviceAvailable bool
	// GrantHeld reports whether a capture grant is currently held.
	GrantHeld bool
	// GrantValid reports whether the held grant is still valid.
	GrantValid bool
}

// AllowsPlaybackCapture reports whether the privileged playback capture
// strategy can run in the probed environment.
func (p CapabilityProbe) AllowsPlaybackCapture() bool {
	return p.LoopbackSupported && p.GrantHeld && p.GrantValid
}

// AllowsDeviceCapture reports whether the fallback device capture
// strategy can run in the probed environment.
func (p CapabilityProbe) AllowsDeviceCapture() bool {
	return p.DeviceAvailable && p.GrantHeld && p.GrantValid
}
