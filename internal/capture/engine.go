// Package capture runs one recording session: it pulls fixed-size
// chunks from an opened input and fans them out to the session sinks
// until stopped or the input fails.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/codec"
	"github.com/playcap/playcap/internal/logger"
	"github.com/playcap/playcap/internal/sink"
)

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("capture session already running")

const (
	// healthCheckEvery is the read count between input health checks.
	healthCheckEvery = 50

	// restartPause separates the stop and start halves of an in-place
	// input restart.
	restartPause = 250 * time.Millisecond

	// stopTimeout bounds how long Stop waits for the worker to exit.
	stopTimeout = 5 * time.Second

	// maxConsecutiveReadErrors ends the loop when reached.
	maxConsecutiveReadErrors = 2
)

// Result summarizes one finished capture session.
type Result struct {
	SessionID    uuid.UUID
	Files        sink.Files
	ValidChunks  int
	SilentChunks int
	StalledReads int
	Restarts     int
	Duration     time.Duration

	// NothingPlaying is set when every chunk of the session was silent.
	// The session itself succeeded; no application was rendering audio.
	NothingPlaying bool
}

// Config wires an engine to its collaborators.
type Config struct {
	Opener    audio.Opener
	Usages    []audio.Usage
	OutputDir string

	// NewEncoder builds the compressed-stream encoder for each session.
	// Defaults to the Opus encoder.
	NewEncoder func() codec.Encoder

	Log *logger.Logger
}

// Engine owns the capture loop. One goroutine per session is the sole
// writer to all sinks; Start and Stop are safe to call from other
// goroutines.
type Engine struct {
	cfg Config

	mu       sync.Mutex
	running  bool
	stopping bool
	stopChan chan struct{}
	doneChan chan struct{}
	last     *Result
}

// New creates an engine. The opener and output directory must be set;
// the encoder factory defaults to Opus.
func New(cfg Config) *Engine {
	if cfg.NewEncoder == nil {
		cfg.NewEncoder = func() codec.Encoder { return codec.NewOpusEncoder() }
	}
	return &Engine{cfg: cfg}
}

// Start opens the input and sinks and launches the session worker.
// Calling Start while a session runs is a no-op returning
// ErrAlreadyRunning.
func (e *Engine) Start(settings audio.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.cfg.Log.Warn("Capture start requested while a session is running")
		return ErrAlreadyRunning
	}

	minBytes := e.cfg.Opener.MinBufferBytes(settings)
	chunkBytes, err := settings.BufferSize(minBytes)
	if err != nil {
		return fmt.Errorf("derive chunk size: %w", err)
	}

	in, err := e.cfg.Opener.Open(settings, e.cfg.Usages)
	if err != nil {
		return fmt.Errorf("open capture input: %w", err)
	}
	if st := in.State(); st != audio.StateInitialized {
		in.Close()
		return fmt.Errorf("capture input in state %s after open", st)
	}

	id := uuid.New()
	base := fmt.Sprintf("capture-%s", time.Now().Format("20060102-150405"))
	writer, err := sink.NewSessionWriter(e.cfg.OutputDir, base, settings, e.cfg.NewEncoder())
	if err != nil {
		in.Close()
		return fmt.Errorf("open session sinks: %w", err)
	}

	if err := in.Start(); err != nil {
		writer.Finalize()
		in.Close()
		return fmt.Errorf("start capture input: %w", err)
	}

	e.running = true
	e.stopping = false
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})

	e.cfg.Log.Info("Capture session %s started: %d Hz, %d ch, chunk %d bytes",
		id, settings.SampleRate, settings.Channels, chunkBytes)

	go e.loop(id, in, writer, chunkBytes, e.stopChan, e.doneChan)
	return nil
}

// loop is the session worker: the sole writer to every sink.
func (e *Engine) loop(id uuid.UUID, in audio.Input, writer *sink.SessionWriter, chunkBytes int, stop, done chan struct{}) {
	started := time.Now()
	res := &Result{SessionID: id}

	dst := make([]int16, chunkBytes/audio.BytesPerSample)
	raw := make([]byte, chunkBytes)

	reads := 0
	readErrors := 0

	for {
		select {
		case <-stop:
			goto finish
		default:
		}

		reads++
		if reads%healthCheckEvery == 0 && !e.checkHealth(in, res) {
			break
		}

		n, err := in.Read(dst)
		if err != nil {
			readErrors++
			e.cfg.Log.Warn("Capture read error (%d consecutive): %v", readErrors, err)
			if readErrors >= maxConsecutiveReadErrors {
				break
			}
			continue
		}
		readErrors = 0

		if n == 0 {
			// Stall: the input produced nothing inside its wait window.
			// Nothing is written; the health check deals with a wedged
			// input.
			res.StalledReads++
			continue
		}

		silent := true
		for i := 0; i < n; i++ {
			s := dst[i]
			raw[2*i] = byte(s)
			raw[2*i+1] = byte(uint16(s) >> 8)
			if s != 0 {
				silent = false
			}
		}

		if silent {
			// Silent chunks still reach every sink; dropping them would
			// desynchronize the recorded timeline.
			res.SilentChunks++
		} else {
			res.ValidChunks++
		}

		if err := writer.Write(raw[:2*n]); err != nil {
			e.cfg.Log.Error("Session sink write failed: %v", err)
			break
		}
	}

finish:
	in.Stop()
	in.Close()

	files, err := writer.Finalize()
	if err != nil {
		e.cfg.Log.Error("Session finalize reported: %v", err)
	}

	res.Files = files
	res.Duration = time.Since(started)
	res.NothingPlaying = res.ValidChunks == 0

	e.cfg.Log.Info("Capture session %s finished: %d valid, %d silent, %d stalled, %d bytes, %s",
		id, res.ValidChunks, res.SilentChunks, res.StalledReads, files.RawBytes, res.Duration.Round(time.Millisecond))
	if res.NothingPlaying {
		e.cfg.Log.Warn("No application audio detected during session %s", id)
	}

	e.mu.Lock()
	e.running = false
	e.last = res
	e.mu.Unlock()

	close(done)
}

// checkHealth verifies the input still reports Recording and performs
// at most one in-place restart per session.
func (e *Engine) checkHealth(in audio.Input, res *Result) bool {
	if in.State() == audio.StateRecording {
		return true
	}

	if res.Restarts >= 1 {
		e.cfg.Log.Error("Capture input unhealthy after restart, ending session")
		return false
	}

	e.cfg.Log.Warn("Capture input no longer recording, attempting in-place restart")
	in.Stop()
	time.Sleep(restartPause)
	if err := in.Start(); err != nil {
		e.cfg.Log.Error("In-place restart failed: %v", err)
		return false
	}
	res.Restarts++
	return true
}

// Stop signals the worker and joins it with a bounded wait. It returns
// the session result, or the previous result when no session was
// running.
func (e *Engine) Stop() *Result {
	e.mu.Lock()
	if !e.running {
		last := e.last
		e.mu.Unlock()
		return last
	}
	if !e.stopping {
		e.stopping = true
		close(e.stopChan)
	}
	done := e.doneChan
	e.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		e.cfg.Log.Error("Capture worker did not stop within %s", stopTimeout)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Running reports whether a session is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastResult returns the most recent finished session, or nil.
func (e *Engine) LastResult() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}
