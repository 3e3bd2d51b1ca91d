package sink

import (
	"fmt"
	"os"
)

// RawSink writes the headerless PCM stream. The bytes are exactly what
// the capture loop produced, S16LE interleaved, with no framing.
type RawSink struct {
	f       *os.File
	written int64
	closed  bool
}

// NewRawSink creates the raw PCM file.
func NewRawSink(path string) (*RawSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create raw file: %w", err)
	}
	return &RawSink{f: f}, nil
}

// Write appends PCM bytes.
func (r *RawSink) Write(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("raw sink already finalized")
	}
	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

// Finalize closes the file. Idempotent.
func (r *RawSink) Finalize() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

// Bytes returns the number of bytes written so far.
func (r *RawSink) Bytes() int64 {
	return r.written
}

// Path returns the raw file path.
func (r *RawSink) Path() string {
	return r.f.Name()
}
