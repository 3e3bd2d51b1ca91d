// Package hotkey binds a global shortcut that toggles audio capture.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"

	"github.com/playcap/playcap/internal/config"
)

// Event is emitted on the Events channel for every toggle.
type Event struct{}

// Config holds the registered key combination
type Config struct {
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
}

// FromSettings translates the persisted hotkey configuration into a
// registrable combination.
func FromSettings(hc config.HotkeyConfig) (Config, error) {
	var mods []hotkey.Modifier
	if hc.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if hc.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if hc.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if hc.Cmd {
		mods = append(mods, hotkey.ModCmd)
	}
	if len(mods) == 0 {
		return Config{}, fmt.Errorf("hotkey needs at least one modifier")
	}

	key, err := parseKey(hc.Key)
	if err != nil {
		return Config{}, err
	}

	return Config{Modifiers: mods, Key: key}, nil
}

// parseKey maps a config key name to a hotkey key code.
func parseKey(name string) (hotkey.Key, error) {
	switch strings.ToUpper(name) {
	case "SPACE":
		return hotkey.KeySpace, nil
	case "RETURN", "ENTER":
		return hotkey.KeyReturn, nil
	case "TAB":
		return hotkey.KeyTab, nil
	case "ESC", "ESCAPE":
		return hotkey.KeyEscape, nil
	}

	if len(name) == 1 {
		c := strings.ToUpper(name)[0]
		if c >= 'A' && c <= 'Z' {
			return hotkey.KeyA + hotkey.Key(c-'A'), nil
		}
		if c >= '0' && c <= '9' {
			return hotkey.Key0 + hotkey.Key(c-'0'), nil
		}
	}

	return 0, fmt.Errorf("unsupported hotkey key: %q", name)
}

// Manager registers the global toggle shortcut and republishes key
// presses as toggle events.
type Manager struct {
	hk        *hotkey.Hotkey
	config    Config
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates an unregistered manager.
func New() *Manager {
	return &Manager{
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the combination with the system and starts
// listening.
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already running, call Close() first")
	}

	m.config = config

	// Recreate channels (they may have been closed by a previous Close())
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	hk := hotkey.New(m.config.Modifiers, m.config.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	m.hk = hk
	m.running = true

	m.wg.Add(1)
	go m.listen()

	return nil
}

// listen converts key presses into toggle events. A full press-release
// cycle emits exactly one event.
func (m *Manager) listen() {
	defer m.wg.Done()

	for {
		select {
		case <-m.hk.Keydown():
			select {
			case m.eventChan <- Event{}:
			default:
				// Consumer is behind; dropping a toggle beats queueing
				// stale ones.
			}

		case <-m.hk.Keyup():
			// Release is not a separate action for a toggle shortcut.

		case <-m.stopChan:
			return
		}
	}
}

// Events returns the channel delivering toggle events.
func (m *Manager) Events() <-chan Event {
	return m.eventChan
}

// Close unregisters the hotkey and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	// Unregister can fail, cleanup still has to finish so a later
	// Register works.
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
	}

	if m.eventChan != nil {
		close(m.eventChan)
		m.eventChan = nil
	}

	m.running = false

	return unregisterErr
}

// IsRunning returns whether the hotkey is currently registered and running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns a copy of the current hotkey configuration
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := m.config
	if m.config.Modifiers != nil {
		configCopy.Modifiers = make([]hotkey.Modifier, len(m.config.Modifiers))
		copy(configCopy.Modifiers, m.config.Modifiers)
	}

	return configCopy
}
