package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/playcap/playcap/internal/audio"
)

// HeaderSize is the fixed RIFF/WAVE header length.
const HeaderSize = 44

// wavHeader is the 44-byte RIFF/WAVE layout for PCM data. All length
// fields are little-endian.
type wavHeader struct {
	RiffID      [4]byte
	RiffSize    uint32
	WaveID      [4]byte
	FmtID       [4]byte
	FmtSize     uint32
	AudioFormat uint16
	NumChannels uint16
	SampleRate  uint32
	ByteRate    uint32
	BlockAlign  uint16
	BitsPerSamp uint16
	DataID      [4]byte
	DataSize    uint32
}

func newWAVHeader(s audio.Settings, dataSize uint32) wavHeader {
	return wavHeader{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    36 + dataSize,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: 1, // PCM
		NumChannels: uint16(s.Channels),
		SampleRate:  uint32(s.SampleRate),
		ByteRate:    uint32(s.BytesPerSecond()),
		BlockAlign:  uint16(s.FrameBytes()),
		BitsPerSamp: audio.BytesPerSample * 8,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    dataSize,
	}
}

// WAVSink writes the uncompressed container file. The header is written
// twice: a zero-length placeholder at open time so the container is
// structurally valid even if capture is interrupted, and a corrected
// version at Finalize once the data length is known.
type WAVSink struct {
	f        *os.File
	settings audio.Settings
	written  int64
	closed   bool
}

// NewWAVSink creates the container file and writes the placeholder
// header.
func NewWAVSink(path string, s audio.Settings) (*WAVSink, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create container file: %w", err)
	}

	h := newWAVHeader(s, 0)
	if err := binary.Write(f, binary.LittleEndian, &h); err != nil {
		f.Close()
		return nil, fmt.Errorf("write placeholder header: %w", err)
	}

	return &WAVSink{f: f, settings: s}, nil
}

// Write appends PCM bytes after the header.
func (w *WAVSink) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("container sink already finalized")
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

// Finalize rewrites the header with the true data length and closes the
// file. Idempotent.
func (w *WAVSink) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		w.f.Close()
		return fmt.Errorf("seek to header: %w", err)
	}
	h := newWAVHeader(w.settings, uint32(w.written))
	if err := binary.Write(w.f, binary.LittleEndian, &h); err != nil {
		w.f.Close()
		return fmt.Errorf("rewrite header: %w", err)
	}
	return w.f.Close()
}

// Bytes returns the number of data bytes written so far.
func (w *WAVSink) Bytes() int64 {
	return w.written
}

// Path returns the container file path.
func (w *WAVSink) Path() string {
	return w.f.Name()
}

// ReadDataLength reads the data-chunk length field back out of a
// finalized container file.
func ReadDataLength(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(40, io.SeekStart); err != nil {
		return 0, err
	}
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return 0, err
	}
	return n, nil
}
