package audio

// InputState describes the lifecycle state of an opened capture handle
type InputState int

const (
	// StateUninitialized means the handle never completed setup
	StateUninitialized InputState = iota
	// StateInitialized means the handle is open but not delivering samples
	StateInitialized
	// StateRecording means the handle is actively delivering samples
	StateRecording
	// StateStopped means delivery was halted; the handle may be restarted
	StateStopped
	// StateClosed means the handle was released
	StateClosed
)

// String returns the string representation of the state
func (s InputState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateRecording:
		return "Recording"
	case StateStopped:
		return "Stopped"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Input is one opened hardware capture handle. The capture engine is its
// sole user for the duration of a session; implementations only need to
// be safe for one reader plus concurrent State/Stop calls.
type Input interface {
	// Start begins sample delivery. Idempotent while recording.
	Start() error

	// Read fills dst with interleaved signed 16-bit samples and returns
	// the number of samples written. A (0, nil) return means the input
	// produced no complete chunk within its wait window: a stall, not
	// an error.
	Read(dst []int16) (int, error)

	// State reports the current handle state.
	State() InputState

	// Stop halts sample delivery but keeps the handle open so the
	// engine can attempt an in-place restart.
	Stop() error

	// Close releases the handle. Always safe to call.
	Close() error
}

// Opener opens capture inputs for a backend. The usage filter is carried
// in the opened handle's configuration; platform mixers enforce it where
// supported.
type Opener interface {
	// MinBufferBytes reports the smallest read buffer the backend
	// supports for the given settings.
	MinBufferBytes(Settings) int

	// Open opens a capture handle scoped to the given usages.
	Open(Settings, []Usage) (Input, error)
}
