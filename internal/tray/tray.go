// Package tray renders the system tray icon and menu of the capture
// daemon.
package tray

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/playcap/playcap/internal/logger"
)

// State represents the current capture state shown in the tray.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateError
)

// Manager manages the system tray icon and menu
type Manager struct {
	stateMutex      sync.RWMutex
	state           State
	ready           bool
	onReadyCallback func()
	onToggle        func()
	onSwitch        func(strategy string)
	onOpenOutput    func()
	onQuit          func()
	log             *logger.Logger

	menuToggle   *systray.MenuItem
	menuStatus   *systray.MenuItem
	menuPlayback *systray.MenuItem
	menuDevice   *systray.MenuItem
	menuOutput   *systray.MenuItem
	menuQuit     *systray.MenuItem

	// Icon cache
	iconIdle      []byte
	iconCapturing []byte
	iconError     []byte
}

// Config holds tray manager configuration
type Config struct {
	OnReady      func()                // Called when systray is ready for initialization
	OnToggle     func()                // Called when the user starts or stops capture
	OnSwitch     func(strategy string) // Called when the user picks a capture mechanism
	OnOpenOutput func()                // Called when the user opens the recordings folder
	OnQuit       func()
	Log          *logger.Logger
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	m := &Manager{
		state:           StateIdle,
		onReadyCallback: config.OnReady,
		onToggle:        config.OnToggle,
		onSwitch:        config.OnSwitch,
		onOpenOutput:    config.OnOpenOutput,
		onQuit:          config.OnQuit,
		log:             config.Log,
	}

	// Load icons once at initialization
	m.iconIdle = m.loadIconData("playcap-idle.png", getIdleIcon())
	m.iconCapturing = m.loadIconData("playcap-capturing.png", getCapturingIcon())
	m.iconError = m.loadIconData("playcap-error.png", getErrorIcon())

	return m
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// onReady is called when systray is ready
func (m *Manager) onReady() {
	m.stateMutex.Lock()
	m.ready = true
	m.stateMutex.Unlock()

	m.updateIcon()
	systray.SetTooltip("PlayCap")

	m.menuStatus = systray.AddMenuItem("Idle", "Current capture state")
	m.menuStatus.Disable()
	m.menuToggle = systray.AddMenuItem("Start capture", "Start or stop capturing system playback")

	systray.AddSeparator()

	strategies := systray.AddMenuItem("Capture mechanism", "Select how audio is captured")
	m.menuPlayback = strategies.AddSubMenuItem("System playback", "Tap the system render path")
	m.menuDevice = strategies.AddSubMenuItem("Capture device", "Record from an input device")
	m.menuOutput = systray.AddMenuItem("Open recordings folder", "Show captured files")

	systray.AddSeparator()

	m.menuQuit = systray.AddMenuItem("Quit", "Quit PlayCap")

	// Start event loop
	go m.handleMenuEvents()

	if m.onReadyCallback != nil {
		m.onReadyCallback()
	}
}

// onExit is called when systray is exiting
func (m *Manager) onExit() {
}

// handleMenuEvents handles menu item clicks
func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuToggle.ClickedCh:
			if m.onToggle != nil {
				m.onToggle()
			}
		case <-m.menuPlayback.ClickedCh:
			if m.onSwitch != nil {
				m.onSwitch("playback")
			}
		case <-m.menuDevice.ClickedCh:
			if m.onSwitch != nil {
				m.onSwitch("device")
			}
		case <-m.menuOutput.ClickedCh:
			if m.onOpenOutput != nil {
				m.onOpenOutput()
			}
		case <-m.menuQuit.ClickedCh:
			if m.onQuit != nil {
				m.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

// SetState updates the tray icon based on the current capture state.
func (m *Manager) SetState(state State) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.state = state
	m.updateIconLocked()
}

// SetStatus replaces the status line at the top of the menu.
func (m *Manager) SetStatus(text string) {
	m.stateMutex.RLock()
	ready := m.ready
	m.stateMutex.RUnlock()
	if !ready || m.menuStatus == nil {
		return
	}
	m.menuStatus.SetTitle(text)
}

// State returns the current tray state.
func (m *Manager) State() State {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

func (m *Manager) updateIcon() {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	m.updateIconLocked()
}

// updateIconLocked applies the icon and labels for the current state.
// Caller holds stateMutex.
func (m *Manager) updateIconLocked() {
	if !m.ready {
		return
	}
	switch m.state {
	case StateIdle:
		systray.SetIcon(m.iconIdle)
		systray.SetTooltip("PlayCap - idle")
		if m.menuToggle != nil {
			m.menuToggle.SetTitle("Start capture")
		}
	case StateCapturing:
		systray.SetIcon(m.iconCapturing)
		systray.SetTooltip("PlayCap - capturing")
		if m.menuToggle != nil {
			m.menuToggle.SetTitle("Stop capture")
		}
	case StateError:
		systray.SetIcon(m.iconError)
		systray.SetTooltip("PlayCap - capture error")
		if m.menuToggle != nil {
			m.menuToggle.SetTitle("Start capture")
		}
	}
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

// loadIconData loads an icon from the assets directory next to the
// executable. If the file cannot be loaded, the embedded fallback is
// used.
func (m *Manager) loadIconData(filename string, fallback []byte) []byte {
	exe, err := os.Executable()
	if err != nil {
		m.warn("Could not resolve executable path: %v", err)
		return fallback
	}

	iconPath := filepath.Join(filepath.Dir(exe), "assets", "icon", filename)
	data, err := os.ReadFile(iconPath)
	if err != nil {
		m.warn("Could not load icon %s: %v", iconPath, err)
		return fallback
	}

	return data
}

func (m *Manager) warn(format string, v ...interface{}) {
	if m.log != nil {
		m.log.Warn(format, v...)
	} else {
		fmt.Fprintf(os.Stderr, format+"\n", v...)
	}
}

// getIdleIcon returns the embedded icon data for the idle state
func getIdleIcon() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x18, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xff, 0xff, 0x3f, 0x03, 0x00, 0x00,
		0x00, 0xff, 0xff, 0x03, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60,
		0x82,
	}
}

// getCapturingIcon returns the embedded icon data for the capturing state
func getCapturingIcon() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xc0, 0xc0, 0xc0, 0xf0, 0x9f,
		0x81, 0x81, 0x81, 0x81, 0xff, 0x19, 0x18, 0x18,
		0x18, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0x03,
		0x00, 0x0c, 0x10, 0x02, 0x01, 0x8b, 0xd5, 0xf8,
		0x23, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

// getErrorIcon returns the embedded icon data for the error state
func getErrorIcon() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xf0, 0x9f, 0xc1, 0xc8, 0xc0,
		0xc0, 0xc0, 0xff, 0x0c, 0x0c, 0x0c, 0xfc, 0xcf,
		0xc0, 0xc0, 0xc0, 0x00, 0x00, 0x00, 0x00, 0xff,
		0xff, 0x03, 0x00, 0x0c, 0x50, 0x02, 0x01, 0x3e,
		0x0a, 0xe4, 0x5b, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}
