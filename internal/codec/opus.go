package codec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/playcap/playcap/internal/audio"
)

// Sentinel errors for the codec adapter.
var (
	// ErrEncoderInit indicates the compressed-stream encoder could not be
	// configured. This aborts the whole capture session: the multi-format
	// write contract cannot be honored with container/raw output alone.
	ErrEncoderInit = errors.New("opus encoder initialization failed")

	// ErrNotOpen indicates Submit or Drain was called before a
	// successful Open.
	ErrNotOpen = errors.New("opus encoder not open")
)

// BitratePerChannel is the target bitrate contribution of each channel.
const BitratePerChannel = 64000

// frameMs is the Opus frame duration used throughout; 20ms is the
// codec's sweet spot for general audio.
const frameMs = 20

// maxPacketBytes is the scratch packet buffer size, comfortably above
// any packet Opus produces at these bitrates.
const maxPacketBytes = 4000

// opusRates lists the sample rates libopus accepts.
var opusRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// Encoder is the compressed-stream side of the multi-format writer. Raw
// S16LE bytes go in via Submit; encoded packets come out via Drain.
type Encoder interface {
	// Open configures the encoder for the session settings.
	Open(audio.Settings) error

	// Submit queues raw S16LE bytes for encoding. Non-blocking; the
	// queue grows until the next Drain.
	Submit(p []byte)

	// Drain encodes every complete frame to w. When final is true the
	// queued tail is zero-padded to a frame boundary and flushed, after
	// which the stream is complete.
	Drain(w io.Writer, final bool) error

	// Close releases encoder resources. Always callable, even after a
	// partially failed Open.
	Close() error
}

// OpusEncoder encodes the capture stream with libopus. Packets are
// appended to the sink back to back; the codec's own framing applies,
// no container is added.
type OpusEncoder struct {
	// Bitrate overrides the session target bitrate in bits per second.
	// Zero selects BitratePerChannel scaled by channel count.
	Bitrate int

	enc          *opus.Encoder
	settings     audio.Settings
	frameSamples int // interleaved samples per 20ms frame
	pcm          []int16
	packet       []byte
}

// NewOpusEncoder returns an unopened encoder.
func NewOpusEncoder() *OpusEncoder {
	return &OpusEncoder{packet: make([]byte, maxPacketBytes)}
}

// resolveBitrate picks the encoder target: the configured override when
// set, otherwise BitratePerChannel scaled by channel count.
func resolveBitrate(override, channels int) int {
	if override > 0 {
		return override
	}
	return BitratePerChannel * channels
}

// Open configures the encoder for the given sample rate and channel
// count, at the Bitrate override or BitratePerChannel per channel.
func (e *OpusEncoder) Open(s audio.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderInit, err)
	}
	if !opusRates[s.SampleRate] {
		return fmt.Errorf("%w: unsupported sample rate %d", ErrEncoderInit, s.SampleRate)
	}

	enc, err := opus.NewEncoder(s.SampleRate, s.Channels, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderInit, err)
	}
	if err := enc.SetBitrate(resolveBitrate(e.Bitrate, s.Channels)); err != nil {
		return fmt.Errorf("%w: set bitrate: %v", ErrEncoderInit, err)
	}

	e.enc = enc
	e.settings = s
	e.frameSamples = s.SampleRate * frameMs / 1000 * s.Channels
	e.pcm = e.pcm[:0]
	return nil
}

// Submit queues raw S16LE bytes. A trailing odd byte would mean the
// caller broke sample framing, so it is dropped.
func (e *OpusEncoder) Submit(p []byte) {
	if e.enc == nil {
		return
	}
	for i := 0; i+1 < len(p); i += 2 {
		e.pcm = append(e.pcm, int16(uint16(p[i])|uint16(p[i+1])<<8))
	}
}

// Drain encodes all complete frames to w. With final set, the tail is
// zero-padded to a full frame first so no queued audio is lost.
func (e *OpusEncoder) Drain(w io.Writer, final bool) error {
	if e.enc == nil {
		return ErrNotOpen
	}

	if final && len(e.pcm)%e.frameSamples != 0 {
		pad := e.frameSamples - len(e.pcm)%e.frameSamples
		e.pcm = append(e.pcm, make([]int16, pad)...)
	}

	for len(e.pcm) >= e.frameSamples {
		n, err := e.enc.Encode(e.pcm[:e.frameSamples], e.packet)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		if _, err := w.Write(e.packet[:n]); err != nil {
			return fmt.Errorf("write opus packet: %w", err)
		}
		e.pcm = e.pcm[e.frameSamples:]
	}
	return nil
}

// Queued returns the number of samples awaiting a full frame. Mostly
// useful for tests and diagnostics.
func (e *OpusEncoder) Queued() int {
	return len(e.pcm)
}

// Close releases the encoder. Safe to call at any point.
func (e *OpusEncoder) Close() error {
	e.enc = nil
	e.pcm = nil
	return nil
}
