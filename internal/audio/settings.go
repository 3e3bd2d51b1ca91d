package audio

import "fmt"

// BytesPerSample is fixed by the S16LE sample encoding used throughout
// the pipeline.
const BytesPerSample = 2

// Settings holds the immutable parameters of one capture attempt.
// Once a session starts the settings must not change; quality
// adjustment happens between sessions via NextSettings.
type Settings struct {
	SampleRate       int `json:"sample_rate"`
	Channels         int `json:"channels"` // 1 = mono, 2 = stereo
	BufferMultiplier int `json:"buffer_multiplier"`
}

// DefaultSettings returns the default capture settings
// Sample rate: 16kHz, mono, 4x the subsystem minimum buffer
func DefaultSettings() Settings {
	return Settings{
		SampleRate:       16000,
		Channels:         1,
		BufferMultiplier: 4,
	}
}

// Validate checks the settings for internal consistency
func (s Settings) Validate() error {
	if s.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", s.SampleRate)
	}
	if s.Channels != 1 && s.Channels != 2 {
		return fmt.Errorf("invalid channel count: %d (must be 1 or 2)", s.Channels)
	}
	if s.BufferMultiplier < 1 {
		return fmt.Errorf("invalid buffer multiplier: %d (must be >= 1)", s.BufferMultiplier)
	}
	return nil
}

// BufferSize derives the read-chunk size in bytes from the minimum
// buffer size reported by the audio subsystem for these settings.
// The result is always a positive multiple of both the minimum and the
// multiplier; settings that cannot derive a valid size must not be used
// to open a capture handle.
func (s Settings) BufferSize(minBytes int) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if minBytes <= 0 {
		return 0, fmt.Errorf("subsystem reported invalid minimum buffer size: %d", minBytes)
	}
	return minBytes * s.BufferMultiplier, nil
}

// BytesPerSecond returns the raw PCM data rate for these settings.
func (s Settings) BytesPerSecond() int {
	return s.SampleRate * s.Channels * BytesPerSample
}

// FrameBytes returns the size of one interleaved sample frame.
func (s Settings) FrameBytes() int {
	return s.Channels * BytesPerSample
}

// qualityLadder orders capture settings from cheapest to richest. Every
// rung uses a sample rate the compressed codec accepts, so escalation
// never breaks the multi-format write contract. The buffer multiplier is
// preserved from the current settings when moving along the ladder.
var qualityLadder = []Settings{
	{SampleRate: 16000, Channels: 1},
	{SampleRate: 24000, Channels: 1},
	{SampleRate: 48000, Channels: 2},
}

// NextSettings picks the settings for the next capture attempt from the
// outcome of recent ones: de-escalate quality after repeated errors or
// under performance pressure, escalate after clean runs. It is a pure
// function so the policy is testable without a live capture session.
func NextSettings(cur Settings, recentErrors int, perfPressure bool) Settings {
	idx := ladderIndex(cur)

	switch {
	case recentErrors >= 2 || perfPressure:
		if idx > 0 {
			idx--
		}
	case recentErrors == 0:
		if idx < len(qualityLadder)-1 {
			idx++
		}
	}

	next := qualityLadder[idx]
	next.BufferMultiplier = cur.BufferMultiplier
	if next.BufferMultiplier < 1 {
		next.BufferMultiplier = DefaultSettings().BufferMultiplier
	}
	return next
}

// ladderIndex finds the rung matching cur, or the bottom rung when cur
// is not on the ladder.
func ladderIndex(cur Settings) int {
	for i, s := range qualityLadder {
		if s.SampleRate == cur.SampleRate && s.Channels == cur.Channels {
			return i
		}
	}
	return 0
}
