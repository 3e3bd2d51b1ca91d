package sink

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/codec"
)

// fakeEncoder buffers submitted bytes and emits them verbatim on drain,
// so the fan-out logic can be tested without a live codec.
type fakeEncoder struct {
	openErr   error
	opened    bool
	closed    bool
	queued    []byte
	finalSeen bool
}

func (f *fakeEncoder) Open(s audio.Settings) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeEncoder) Submit(p []byte) {
	f.queued = append(f.queued, p...)
}

func (f *fakeEncoder) Drain(w io.Writer, final bool) error {
	if final {
		f.finalSeen = true
	}
	_, err := w.Write(f.queued)
	f.queued = nil
	return err
}

func (f *fakeEncoder) Close() error {
	f.closed = true
	return nil
}

func TestSessionWriter_FanOut(t *testing.T) {
	dir := t.TempDir()
	settings := audio.DefaultSettings()
	enc := &fakeEncoder{}

	sw, err := NewSessionWriter(dir, "capture", settings, enc)
	if err != nil {
		t.Fatalf("NewSessionWriter failed: %v", err)
	}

	// Two seconds at 16kHz mono, in 100ms chunks.
	chunk := make([]byte, settings.BytesPerSecond()/10)
	for i := range chunk {
		chunk[i] = byte(i)
	}
	for i := 0; i < 20; i++ {
		if err := sw.Write(chunk); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	files, err := sw.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	wantData := int64(20 * len(chunk))
	if files.ContainerBytes != wantData {
		t.Errorf("Expected %d container data bytes, got %d", wantData, files.ContainerBytes)
	}
	if files.RawBytes != wantData {
		t.Errorf("Expected %d raw bytes, got %d", wantData, files.RawBytes)
	}
	if files.CompressedBytes != wantData {
		t.Errorf("Expected %d compressed bytes from the pass-through encoder, got %d", wantData, files.CompressedBytes)
	}

	// Container carries the header on top of the data.
	info, err := os.Stat(files.ContainerPath)
	if err != nil {
		t.Fatalf("Stat container failed: %v", err)
	}
	if info.Size() != wantData+HeaderSize {
		t.Errorf("Expected container file size %d, got %d", wantData+HeaderSize, info.Size())
	}

	raw, err := os.ReadFile(files.RawPath)
	if err != nil {
		t.Fatalf("ReadFile raw failed: %v", err)
	}
	if int64(len(raw)) != wantData {
		t.Errorf("Expected %d bytes in raw file, got %d", wantData, len(raw))
	}

	if !enc.finalSeen {
		t.Error("Finalize should drain the encoder with final set")
	}
	if !enc.closed {
		t.Error("Finalize should close the encoder")
	}
}

func TestSessionWriter_EncoderFailureAbortsSession(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{openErr: codec.ErrEncoderInit}

	_, err := NewSessionWriter(dir, "capture", audio.DefaultSettings(), enc)
	if !errors.Is(err, codec.ErrEncoderInit) {
		t.Fatalf("Expected ErrEncoderInit, got %v", err)
	}

	// No partial output may survive an aborted session.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no leftover files, found %d", len(entries))
	}
}

func TestSessionWriter_FinalizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{}

	sw, err := NewSessionWriter(dir, "capture", audio.DefaultSettings(), enc)
	if err != nil {
		t.Fatalf("NewSessionWriter failed: %v", err)
	}
	if err := sw.Write(make([]byte, 320)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	first, err := sw.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	second, err := sw.Finalize()
	if err != nil {
		t.Errorf("Second Finalize should be a no-op, got %v", err)
	}
	if first != second {
		t.Errorf("Repeated Finalize should report the same files: %+v vs %+v", first, second)
	}

	if err := sw.Write(make([]byte, 320)); err == nil {
		t.Error("Write after Finalize should fail")
	}
}

func TestSessionWriter_SilentChunksWritten(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{}
	settings := audio.DefaultSettings()

	sw, err := NewSessionWriter(dir, "capture", settings, enc)
	if err != nil {
		t.Fatalf("NewSessionWriter failed: %v", err)
	}

	// All-zero chunks must land in every sink to keep the timeline
	// continuous.
	silent := make([]byte, 640)
	for i := 0; i < 5; i++ {
		if err := sw.Write(silent); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	files, err := sw.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if files.RawBytes != 5*640 {
		t.Errorf("Expected %d raw bytes of silence, got %d", 5*640, files.RawBytes)
	}
	if files.ContainerBytes != 5*640 {
		t.Errorf("Expected %d container data bytes of silence, got %d", 5*640, files.ContainerBytes)
	}
}

func TestSessionWriter_WithOpusEncoder(t *testing.T) {
	dir := t.TempDir()
	settings := audio.DefaultSettings()

	sw, err := NewSessionWriter(dir, "capture", settings, codec.NewOpusEncoder())
	if err != nil {
		t.Skipf("Opus encoder unavailable: %v", err)
	}

	// One second of a ramp signal.
	data := make([]byte, settings.BytesPerSecond())
	for i := 0; i < len(data)/2; i++ {
		v := int16(i % 512)
		data[2*i] = byte(v)
		data[2*i+1] = byte(v >> 8)
	}
	if err := sw.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	files, err := sw.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if files.CompressedBytes == 0 {
		t.Error("Expected compressed output from a full second of audio")
	}
	if files.CompressedBytes >= files.RawBytes {
		t.Errorf("Compressed stream (%d) should be smaller than raw (%d)", files.CompressedBytes, files.RawBytes)
	}

	if _, err := os.Stat(filepath.Join(dir, "capture.opus")); err != nil {
		t.Errorf("Expected compressed file on disk: %v", err)
	}
}
