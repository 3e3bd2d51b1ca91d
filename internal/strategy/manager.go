package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/capture"
	"github.com/playcap/playcap/internal/events"
	"github.com/playcap/playcap/internal/logger"
)

// State is the manager lifecycle state.
type State int

const (
	// Idle means no strategy is active.
	Idle State = iota
	// Selecting means candidates are being probed and started.
	Selecting
	// Running means a strategy holds an active session.
	Running
	// Stopping means the active session is being joined.
	Stopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Selecting:
		return "Selecting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Outcome summarizes a StartCapture call.
type Outcome int

const (
	// Started means the preferred strategy is capturing.
	Started Outcome = iota
	// Degraded means a fallback strategy is capturing.
	Degraded
	// Failed means no strategy could start.
	Failed
)

// StartReport tells the caller how selection went.
type StartReport struct {
	Outcome  Outcome
	Strategy string
	Reason   string
}

// Manager walks capture strategies in priority order, starts the first
// one that works and supervises fallback. Its public entry points are
// called from the owning daemon's goroutine; internal state is guarded
// but calls are expected to be serialized by the caller.
type Manager struct {
	strategies []Strategy
	classifier *Classifier
	bus        *events.Bus
	log        *logger.Logger

	mu        sync.Mutex
	state     State
	active    Strategy
	preferred string
	settings  audio.Settings
	last      *capture.Result
}

// NewManager builds a manager over the given strategies, ordered by
// ascending priority.
func NewManager(bus *events.Bus, log *logger.Logger, strategies ...Strategy) *Manager {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	return &Manager{
		strategies: sorted,
		classifier: NewClassifier(),
		bus:        bus,
		log:        log,
		settings:   audio.DefaultSettings(),
	}
}

// Prefer moves the named strategy to the front of the selection order
// for subsequent sessions. An empty or unknown name keeps the plain
// priority order.
func (m *Manager) Prefer(name string) {
	m.mu.Lock()
	m.preferred = name
	m.mu.Unlock()
}

// candidates returns the strategies in selection order: the preferred
// one first when set, then the rest by ascending priority.
func (m *Manager) candidates() []Strategy {
	m.mu.Lock()
	preferred := m.preferred
	m.mu.Unlock()

	if preferred == "" {
		return m.strategies
	}

	ordered := make([]Strategy, 0, len(m.strategies))
	for _, s := range m.strategies {
		if s.Name() == preferred {
			ordered = append(ordered, s)
		}
	}
	for _, s := range m.strategies {
		if s.Name() != preferred {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// StartCapture runs selection: candidates in ascending priority, probe
// then start, with per-category retry policy on failure. It reports one
// of three outcomes; a codec failure aborts selection outright.
func (m *Manager) StartCapture(settings audio.Settings) StartReport {
	m.mu.Lock()
	if m.state == Running {
		if m.active != nil && m.active.Running() {
			name := m.active.Name()
			m.mu.Unlock()
			return StartReport{Outcome: Started, Strategy: name, Reason: "already capturing"}
		}
		// The session ended on its own (read errors, failed restart).
		// Reap it so selection can run again.
		if m.active != nil {
			if res := m.active.Result(); res != nil {
				m.last = res
			}
			m.log.Warn("Strategy %s session ended on its own, reselecting", m.active.Name())
			m.active = nil
		}
	}
	m.state = Selecting
	m.settings = settings
	m.mu.Unlock()

	order := m.candidates()

	var reasons []string
	for idx, s := range order {
		if !s.Available() {
			m.log.Info("Strategy %s not available, skipping", s.Name())
			reasons = append(reasons, fmt.Sprintf("%s: not available", s.Name()))
			continue
		}

		cat, err := m.tryStart(s, settings)
		if err == nil {
			return m.commitStart(s, idx, order[0].Name(), reasons)
		}

		reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name(), err))
		if cat == CategoryCodec {
			// No strategy can satisfy the session write contract when
			// the encoder cannot be configured.
			m.setState(Idle)
			m.log.Error("Codec failure ends selection: %v", err)
			return StartReport{Outcome: Failed, Reason: strings.Join(reasons, "; ")}
		}
	}

	m.setState(Idle)
	reason := "no usable capture mechanism"
	if len(reasons) > 0 {
		reason = fmt.Sprintf("no usable capture mechanism (%s)", strings.Join(reasons, "; "))
	}
	m.log.Error("Capture selection failed: %s", reason)
	return StartReport{Outcome: Failed, Reason: reason}
}

// tryStart attempts one strategy, retrying per the recovery policy of
// the failure category. The bound consults the lifetime counters, so a
// category that kept failing in earlier sessions gets fewer reattempts
// until a success clears it. Returns the last failure category and
// error.
func (m *Manager) tryStart(s Strategy, settings audio.Settings) (Category, error) {
	var (
		cat Category
		err error
	)
	for attempt := 1; ; attempt++ {
		m.bus.Publish(events.CaptureAttempt{Strategy: s.Name()})

		err = s.Start(settings)
		if err == nil {
			return cat, nil
		}

		cat = m.classifier.Record(err)
		m.bus.Publish(events.CaptureError{Strategy: s.Name(), Category: cat.String(), Message: err.Error()})
		m.log.Warn("Strategy %s failed (attempt %d, %s): %v", s.Name(), attempt, cat, err)

		if m.classifier.Failures(cat) >= maxAttempts(cat) {
			return cat, err
		}
	}
}

// commitStart records a successful start and reports it.
func (m *Manager) commitStart(s Strategy, idx int, first string, reasons []string) StartReport {
	m.mu.Lock()
	m.state = Running
	m.active = s
	m.mu.Unlock()

	m.classifier.MarkRecovered()

	if idx == 0 {
		m.log.Info("Capture started with strategy %s", s.Name())
		return StartReport{Outcome: Started, Strategy: s.Name()}
	}

	reason := strings.Join(reasons, "; ")
	m.bus.Publish(events.StrategySwitch{From: first, To: s.Name(), Reason: reason})
	m.log.Warn("Capture degraded to strategy %s: %s", s.Name(), reason)
	return StartReport{Outcome: Degraded, Strategy: s.Name(), Reason: reason}
}

// StopCapture joins the active session and returns its result, or nil
// when nothing was running.
func (m *Manager) StopCapture() *capture.Result {
	m.mu.Lock()
	if m.state != Running || m.active == nil {
		m.mu.Unlock()
		return nil
	}
	m.state = Stopping
	active := m.active
	m.mu.Unlock()

	res := active.Stop()

	m.mu.Lock()
	m.state = Idle
	m.active = nil
	m.last = res
	m.mu.Unlock()

	if res != nil {
		m.bus.Publish(events.CaptureSuccess{Strategy: active.Name(), Duration: res.Duration, Bytes: res.Files.RawBytes})
		m.log.Info("Capture stopped: strategy %s, %d bytes, %s", active.Name(), res.Files.RawBytes, res.Duration)
	}
	return res
}

// Switch stops the current strategy and starts the named one. The
// switch commits only when the target starts; on failure the manager
// stays stopped and the error is returned.
func (m *Manager) Switch(name string) error {
	var target Strategy
	for _, s := range m.strategies {
		if s.Name() == name {
			target = s
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown strategy %q", name)
	}

	m.mu.Lock()
	current := m.active
	settings := m.settings
	m.mu.Unlock()

	if current == target && target.Running() {
		return nil
	}

	from := "none"
	if current != nil {
		from = current.Name()
		m.StopCapture()
	}

	if !target.Available() {
		m.setState(Idle)
		return fmt.Errorf("strategy %s not available", name)
	}

	cat, err := m.tryStart(target, settings)
	if err != nil {
		m.setState(Idle)
		return fmt.Errorf("switch to %s failed (%s): %w", name, cat, err)
	}

	m.mu.Lock()
	m.state = Running
	m.active = target
	m.mu.Unlock()

	m.classifier.MarkRecovered()
	m.bus.Publish(events.StrategySwitch{From: from, To: name, Reason: "requested"})
	m.log.Info("Switched capture strategy from %s to %s", from, name)
	return nil
}

// Recording reports whether a session is active.
func (m *Manager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Running && m.active != nil && m.active.Running()
}

// ActiveStrategy returns the running strategy name, or empty.
func (m *Manager) ActiveStrategy() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.Name()
}

// LastResult returns the most recent finished session.
func (m *Manager) LastResult() *capture.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// State returns the manager state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StatusReport renders a human-readable status line for the control
// surfaces.
func (m *Manager) StatusReport() string {
	m.mu.Lock()
	state := m.state
	active := m.active
	last := m.last
	m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "state=%s", state)
	if active != nil {
		fmt.Fprintf(&b, " strategy=%s", active.Name())
	}
	if last != nil {
		fmt.Fprintf(&b, " last: %d bytes in %s (%d valid, %d silent, %d stalled)",
			last.Files.RawBytes, last.Duration.Round(10*time.Millisecond), last.ValidChunks, last.SilentChunks, last.StalledReads)
		if last.NothingPlaying {
			b.WriteString(" [nothing playing]")
		}
	}
	return b.String()
}

// Cleanup releases every strategy's long-lived resources. Called on
// daemon shutdown.
func (m *Manager) Cleanup() {
	m.StopCapture()
	for _, s := range m.strategies {
		s.Cleanup()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
