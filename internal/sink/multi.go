package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/codec"
)

// Files describes the three output files of a finished session.
type Files struct {
	ContainerPath  string
	RawPath        string
	CompressedPath string

	ContainerBytes  int64 // PCM data bytes, header excluded
	RawBytes        int64
	CompressedBytes int64
}

// countingFile wraps a file and tracks bytes written, so the compressed
// stream size can be reported without a stat call.
type countingFile struct {
	f       *os.File
	written int64
}

func (c *countingFile) Write(p []byte) (int, error) {
	n, err := c.f.Write(p)
	c.written += int64(n)
	return n, err
}

// SessionWriter fans every captured chunk out to the three sinks: the
// WAV container, the headerless raw file, and the compressed stream.
// All three receive the same byte sequence for the same session; a
// chunk that cannot be written everywhere fails the write as a whole.
type SessionWriter struct {
	wav       *WAVSink
	raw       *RawSink
	comp      *countingFile
	enc       codec.Encoder
	finalized bool
}

// NewSessionWriter opens <dir>/<base>.wav, .raw and .opus and configures
// the encoder. Encoder failure aborts the session before any audio is
// read: the partially created files are removed and codec.ErrEncoderInit
// is returned wrapped.
func NewSessionWriter(dir, base string, s audio.Settings, enc codec.Encoder) (*SessionWriter, error) {
	wavPath := filepath.Join(dir, base+".wav")
	rawPath := filepath.Join(dir, base+".raw")
	compPath := filepath.Join(dir, base+".opus")

	wav, err := NewWAVSink(wavPath, s)
	if err != nil {
		return nil, err
	}

	raw, err := NewRawSink(rawPath)
	if err != nil {
		wav.Finalize()
		os.Remove(wavPath)
		return nil, err
	}

	compFile, err := os.Create(compPath)
	if err != nil {
		wav.Finalize()
		raw.Finalize()
		os.Remove(wavPath)
		os.Remove(rawPath)
		return nil, fmt.Errorf("create compressed file: %w", err)
	}

	if err := enc.Open(s); err != nil {
		wav.Finalize()
		raw.Finalize()
		compFile.Close()
		os.Remove(wavPath)
		os.Remove(rawPath)
		os.Remove(compPath)
		return nil, err
	}

	return &SessionWriter{
		wav:  wav,
		raw:  raw,
		comp: &countingFile{f: compFile},
		enc:  enc,
	}, nil
}

// Write delivers one chunk to all three sinks. Silent chunks are
// written like any other so the timeline stays continuous.
func (sw *SessionWriter) Write(p []byte) error {
	if sw.finalized {
		return fmt.Errorf("session writer already finalized")
	}

	if _, err := sw.wav.Write(p); err != nil {
		return fmt.Errorf("container write: %w", err)
	}
	if _, err := sw.raw.Write(p); err != nil {
		return fmt.Errorf("raw write: %w", err)
	}

	sw.enc.Submit(p)
	if err := sw.enc.Drain(sw.comp, false); err != nil {
		return fmt.Errorf("compressed write: %w", err)
	}
	return nil
}

// Finalize flushes the encoder tail, patches the container header and
// closes all files. Idempotent; the first error encountered is
// returned but every sink is still finalized.
func (sw *SessionWriter) Finalize() (Files, error) {
	files := Files{
		ContainerPath:  sw.wav.Path(),
		RawPath:        sw.raw.Path(),
		CompressedPath: sw.comp.f.Name(),
	}

	if sw.finalized {
		files.ContainerBytes = sw.wav.Bytes()
		files.RawBytes = sw.raw.Bytes()
		files.CompressedBytes = sw.comp.written
		return files, nil
	}
	sw.finalized = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(sw.enc.Drain(sw.comp, true))
	keep(sw.enc.Close())
	keep(sw.comp.f.Close())
	keep(sw.raw.Finalize())
	keep(sw.wav.Finalize())

	files.ContainerBytes = sw.wav.Bytes()
	files.RawBytes = sw.raw.Bytes()
	files.CompressedBytes = sw.comp.written
	return files, firstErr
}

// Bytes returns the PCM bytes accepted so far.
func (sw *SessionWriter) Bytes() int64 {
	return sw.raw.Bytes()
}
