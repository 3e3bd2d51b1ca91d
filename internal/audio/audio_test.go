package audio

import (
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", s.SampleRate)
	}

	if s.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", s.Channels)
	}

	if s.BufferMultiplier != 4 {
		t.Errorf("Expected buffer multiplier 4, got %d", s.BufferMultiplier)
	}

	if err := s.Validate(); err != nil {
		t.Errorf("Default settings should validate: %v", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{"default", DefaultSettings(), false},
		{"stereo 48k", Settings{SampleRate: 48000, Channels: 2, BufferMultiplier: 2}, false},
		{"zero sample rate", Settings{SampleRate: 0, Channels: 1, BufferMultiplier: 1}, true},
		{"negative sample rate", Settings{SampleRate: -8000, Channels: 1, BufferMultiplier: 1}, true},
		{"three channels", Settings{SampleRate: 16000, Channels: 3, BufferMultiplier: 1}, true},
		{"zero multiplier", Settings{SampleRate: 16000, Channels: 1, BufferMultiplier: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_BufferSize(t *testing.T) {
	s := Settings{SampleRate: 16000, Channels: 1, BufferMultiplier: 4}

	size, err := s.BufferSize(320)
	if err != nil {
		t.Fatalf("BufferSize failed: %v", err)
	}

	if size != 1280 {
		t.Errorf("Expected buffer size 1280, got %d", size)
	}

	// Derived size must be >= the subsystem minimum and a multiple of the
	// multiplier.
	if size < 320 {
		t.Errorf("Derived size %d is below the subsystem minimum 320", size)
	}
	if size%s.BufferMultiplier != 0 {
		t.Errorf("Derived size %d is not a multiple of the multiplier %d", size, s.BufferMultiplier)
	}
	if size%320 != 0 {
		t.Errorf("Derived size %d is not a multiple of the minimum 320", size)
	}
}

func TestSettings_BufferSize_InvalidMinimum(t *testing.T) {
	s := DefaultSettings()

	if _, err := s.BufferSize(0); err == nil {
		t.Error("Expected error for zero minimum buffer size")
	}

	if _, err := s.BufferSize(-64); err == nil {
		t.Error("Expected error for negative minimum buffer size")
	}
}

func TestSettings_BufferSize_InvalidSettings(t *testing.T) {
	s := Settings{SampleRate: 16000, Channels: 1, BufferMultiplier: 0}

	if _, err := s.BufferSize(320); err == nil {
		t.Error("Invalid settings must not derive a buffer size")
	}
}

func TestSettings_BytesPerSecond(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		expected int
	}{
		{"16k mono", Settings{SampleRate: 16000, Channels: 1, BufferMultiplier: 1}, 32000},
		{"48k stereo", Settings{SampleRate: 48000, Channels: 2, BufferMultiplier: 1}, 192000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.BytesPerSecond(); got != tt.expected {
				t.Errorf("Expected %d bytes/s, got %d", tt.expected, got)
			}
		})
	}
}

func TestNextSettings_EscalatesOnSuccess(t *testing.T) {
	cur := Settings{SampleRate: 16000, Channels: 1, BufferMultiplier: 4}

	next := NextSettings(cur, 0, false)

	if next.SampleRate != 24000 || next.Channels != 1 {
		t.Errorf("Expected escalation to 24000/1, got %d/%d", next.SampleRate, next.Channels)
	}
	if next.BufferMultiplier != 4 {
		t.Errorf("Multiplier should be preserved, got %d", next.BufferMultiplier)
	}
}

func TestNextSettings_DeEscalatesOnErrors(t *testing.T) {
	cur := Settings{SampleRate: 48000, Channels: 2, BufferMultiplier: 2}

	next := NextSettings(cur, 2, false)

	if next.SampleRate != 24000 {
		t.Errorf("Expected de-escalation to 24000, got %d", next.SampleRate)
	}
}

func TestNextSettings_DeEscalatesUnderPressure(t *testing.T) {
	cur := Settings{SampleRate: 24000, Channels: 1, BufferMultiplier: 4}

	next := NextSettings(cur, 0, true)

	if next.SampleRate != 16000 || next.Channels != 1 {
		t.Errorf("Expected de-escalation to 16000/1, got %d/%d", next.SampleRate, next.Channels)
	}
}

func TestNextSettings_ClampsAtLadderEnds(t *testing.T) {
	bottom := Settings{SampleRate: 16000, Channels: 1, BufferMultiplier: 4}
	if next := NextSettings(bottom, 5, true); next.SampleRate != 16000 {
		t.Errorf("Bottom rung should not de-escalate further, got %d", next.SampleRate)
	}

	top := Settings{SampleRate: 48000, Channels: 2, BufferMultiplier: 4}
	if next := NextSettings(top, 0, false); next.SampleRate != 48000 {
		t.Errorf("Top rung should not escalate further, got %d", next.SampleRate)
	}
}

func TestNextSettings_SingleErrorHoldsSteady(t *testing.T) {
	cur := Settings{SampleRate: 24000, Channels: 1, BufferMultiplier: 4}

	next := NextSettings(cur, 1, false)

	if next.SampleRate != 24000 || next.Channels != 1 {
		t.Errorf("One error should hold the current rung, got %d/%d", next.SampleRate, next.Channels)
	}
}

func TestUsage_String(t *testing.T) {
	tests := []struct {
		usage    Usage
		expected string
	}{
		{UsageMedia, "media"},
		{UsageGame, "game"},
		{UsageNotification, "notification"},
		{UsageVoice, "voice"},
		{UsageAlarm, "alarm"},
		{UsageAssistant, "assistant"},
		{Usage(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.usage.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBroadUsagesCoversNarrowUsages(t *testing.T) {
	broad := make(map[Usage]bool)
	for _, u := range BroadUsages() {
		broad[u] = true
	}

	for _, u := range NarrowUsages() {
		if !broad[u] {
			t.Errorf("Narrow usage %s missing from broad allow-list", u)
		}
	}

	if len(NarrowUsages()) >= len(BroadUsages()) {
		t.Error("Narrow usage set should be smaller than the broad allow-list")
	}
}

func TestCapabilityProbe(t *testing.T) {
	tests := []struct {
		name         string
		probe        CapabilityProbe
		wantPlayback bool
		wantDevice   bool
	}{
		{
			"everything available",
			CapabilityProbe{LoopbackSupported: true, DeviceAvailable: true, GrantHeld: true, GrantValid: true},
			true, true,
		},
		{
			"no loopback",
			CapabilityProbe{DeviceAvailable: true, GrantHeld: true, GrantValid: true},
			false, true,
		},
		{
			"grant expired",
			CapabilityProbe{LoopbackSupported: true, DeviceAvailable: true, GrantHeld: true, GrantValid: false},
			false, false,
		},
		{
			"no grant",
			CapabilityProbe{LoopbackSupported: true, DeviceAvailable: true},
			false, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.probe.AllowsPlaybackCapture(); got != tt.wantPlayback {
				t.Errorf("AllowsPlaybackCapture() = %v, want %v", got, tt.wantPlayback)
			}
			if got := tt.probe.AllowsDeviceCapture(); got != tt.wantDevice {
				t.Errorf("AllowsDeviceCapture() = %v, want %v", got, tt.wantDevice)
			}
		})
	}
}

func TestInputState_String(t *testing.T) {
	tests := []struct {
		state    InputState
		expected string
	}{
		{StateUninitialized, "Uninitialized"},
		{StateInitialized, "Initialized"},
		{StateRecording, "Recording"},
		{StateStopped, "Stopped"},
		{StateClosed, "Closed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDeviceOpener_Open(t *testing.T) {
	opener := DeviceOpener{DeviceID: -1}

	in, err := opener.Open(DefaultSettings(), NarrowUsages())
	if err != nil {
		t.Skipf("No capture device available: %v", err)
	}
	defer in.Close()

	if in.State() != StateInitialized {
		t.Errorf("Expected Initialized state after open, got %s", in.State())
	}
}

func TestLoopbackOpener_MinBufferBytes(t *testing.T) {
	opener := LoopbackOpener{}

	// 10ms at 16kHz mono S16LE = 160 frames * 2 bytes.
	if got := opener.MinBufferBytes(DefaultSettings()); got != 320 {
		t.Errorf("Expected 320 bytes, got %d", got)
	}

	stereo := Settings{SampleRate: 48000, Channels: 2, BufferMultiplier: 1}
	if got := opener.MinBufferBytes(stereo); got != 1920 {
		t.Errorf("Expected 1920 bytes, got %d", got)
	}
}
