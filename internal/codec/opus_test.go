package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/playcap/playcap/internal/audio"
)

func TestOpusEncoder_OpenRejectsUnsupportedRate(t *testing.T) {
	e := NewOpusEncoder()
	defer e.Close()

	err := e.Open(audio.Settings{SampleRate: 44100, Channels: 2, BufferMultiplier: 1})
	if !errors.Is(err, ErrEncoderInit) {
		t.Errorf("Expected ErrEncoderInit for 44100 Hz, got %v", err)
	}
}

func TestOpusEncoder_OpenRejectsInvalidSettings(t *testing.T) {
	e := NewOpusEncoder()
	defer e.Close()

	err := e.Open(audio.Settings{SampleRate: 16000, Channels: 5, BufferMultiplier: 1})
	if !errors.Is(err, ErrEncoderInit) {
		t.Errorf("Expected ErrEncoderInit for invalid channels, got %v", err)
	}
}

func TestOpusEncoder_DrainBeforeOpen(t *testing.T) {
	e := NewOpusEncoder()

	var buf bytes.Buffer
	if err := e.Drain(&buf, false); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen, got %v", err)
	}
}

func TestOpusEncoder_EncodeRoundTrip(t *testing.T) {
	e := NewOpusEncoder()
	defer e.Close()

	settings := audio.DefaultSettings()
	if err := e.Open(settings); err != nil {
		t.Skipf("Opus encoder unavailable: %v", err)
	}

	// 100ms of a small ramp signal = five 20ms frames at 16kHz mono.
	samples := settings.SampleRate / 10
	pcm := make([]byte, samples*audio.BytesPerSample)
	for i := 0; i < samples; i++ {
		v := int16(i % 128)
		pcm[2*i] = byte(v)
		pcm[2*i+1] = byte(v >> 8)
	}
	e.Submit(pcm)

	var out bytes.Buffer
	if err := e.Drain(&out, false); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if out.Len() == 0 {
		t.Error("Expected encoded output for five full frames")
	}
	if e.Queued() != 0 {
		t.Errorf("Expected no queued samples after frame-aligned drain, got %d", e.Queued())
	}
}

func TestOpusEncoder_PartialFrameHeldUntilFinal(t *testing.T) {
	e := NewOpusEncoder()
	defer e.Close()

	settings := audio.DefaultSettings()
	if err := e.Open(settings); err != nil {
		t.Skipf("Opus encoder unavailable: %v", err)
	}

	// Half a frame: 10ms at 16kHz mono.
	half := settings.SampleRate / 100 * audio.BytesPerSample
	e.Submit(make([]byte, half))

	var out bytes.Buffer
	if err := e.Drain(&out, false); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Partial frame should not produce output, got %d bytes", out.Len())
	}
	if e.Queued() == 0 {
		t.Error("Partial frame should stay queued until the final drain")
	}

	// Final drain pads the tail and flushes it.
	if err := e.Drain(&out, true); err != nil {
		t.Fatalf("Final drain failed: %v", err)
	}
	if out.Len() == 0 {
		t.Error("Final drain should flush the zero-padded tail")
	}
	if e.Queued() != 0 {
		t.Errorf("Expected empty queue after final drain, got %d samples", e.Queued())
	}
}

func TestOpusEncoder_SubmitDropsOddTrailingByte(t *testing.T) {
	e := NewOpusEncoder()
	defer e.Close()

	if err := e.Open(audio.DefaultSettings()); err != nil {
		t.Skipf("Opus encoder unavailable: %v", err)
	}

	e.Submit([]byte{0x01, 0x02, 0x03})

	if e.Queued() != 1 {
		t.Errorf("Expected 1 queued sample from 3 bytes, got %d", e.Queued())
	}
}

func TestResolveBitrate(t *testing.T) {
	tests := []struct {
		name     string
		override int
		channels int
		want     int
	}{
		{"default mono", 0, 1, BitratePerChannel},
		{"default stereo", 0, 2, 2 * BitratePerChannel},
		{"override wins", 96000, 2, 96000},
		{"negative override ignored", -1, 1, BitratePerChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveBitrate(tt.override, tt.channels); got != tt.want {
				t.Errorf("resolveBitrate(%d, %d) = %d, want %d", tt.override, tt.channels, got, tt.want)
			}
		})
	}
}

func TestOpusEncoder_CloseAlwaysCallable(t *testing.T) {
	e := NewOpusEncoder()

	// Close before Open.
	if err := e.Close(); err != nil {
		t.Errorf("Close before Open failed: %v", err)
	}

	// Close after failed Open.
	_ = e.Open(audio.Settings{SampleRate: 44100, Channels: 1, BufferMultiplier: 1})
	if err := e.Close(); err != nil {
		t.Errorf("Close after failed Open failed: %v", err)
	}
}
