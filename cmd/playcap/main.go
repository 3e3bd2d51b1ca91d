package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/playcap/playcap/internal/api"
	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/config"
	"github.com/playcap/playcap/internal/events"
	"github.com/playcap/playcap/internal/grant"
	"github.com/playcap/playcap/internal/hotkey"
	"github.com/playcap/playcap/internal/logger"
	"github.com/playcap/playcap/internal/notify"
	"github.com/playcap/playcap/internal/server"
	"github.com/playcap/playcap/internal/strategy"
	"github.com/playcap/playcap/internal/tray"
)

const version = "0.1.0"

// grantTTL bounds the bootstrap capture grant. A real consent flow
// would issue and renew grants; the daemon self-issues one per run.
const grantTTL = 12 * time.Hour

// App holds all application state
type App struct {
	logger     *logger.Logger
	config     *config.Config
	bus        *events.Bus
	notifier   *notify.Notifier
	grants     *grant.Holder
	manager    *strategy.Manager
	trayMgr    *tray.Manager
	httpServer *server.Server
	apiHandler *api.Handler
	hotkeyMgr  *hotkey.Manager
}

func init() {
	// The tray event loop must stay on the main thread on macOS
	runtime.LockOSThread()
}

func main() {
	app := &App{}

	loggerConfig := logger.DefaultConfig()
	var err error
	app.logger, err = logger.New(loggerConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer app.logger.Close()

	app.logger.Info("PlayCap v%s starting", version)

	configPath := config.GetConfigPath()
	app.config, err = config.Load(configPath)
	if err != nil {
		app.logger.Error("Failed to load config: %v", err)
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := app.config.Validate(); err != nil {
		app.logger.Error("Invalid configuration: %v", err)
		log.Fatalf("Invalid configuration: %v", err)
	}
	app.logger.Info("Loaded config from %s", configPath)

	outputDir, err := app.config.GetOutputDir()
	if err != nil {
		app.logger.Error("Failed to resolve output directory: %v", err)
		log.Fatalf("Failed to resolve output directory: %v", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		app.logger.Error("Failed to create output directory: %v", err)
		log.Fatalf("Failed to create output directory: %v", err)
	}

	app.bus = events.NewBus()
	app.notifier = notify.New("PlayCap", app.logger)
	app.notifier.Attach(app.bus)

	// The broad grant also covers the narrow usage set of the device
	// fallback, so one bootstrap grant serves both strategies.
	app.grants = grant.NewHolder()
	app.grants.Hold(grant.New(audio.BroadUsages(), grantTTL))

	playback := strategy.NewPlayback(app.grants, outputDir, app.config.OpusBitrate, app.logger)
	device := strategy.NewDevice(app.grants, outputDir, app.config.AudioDeviceID, app.config.OpusBitrate, app.logger)
	app.manager = strategy.NewManager(app.bus, app.logger, playback, device)
	if app.config.PreferredStrategy != "" {
		app.manager.Prefer(app.config.PreferredStrategy)
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = app.config.ServerPort
	app.httpServer = server.New(serverConfig, app.logger)
	app.apiHandler = api.New(app.config, app.manager, app.logger, app.ReloadHotkey)

	app.trayMgr = tray.NewManager(tray.Config{
		OnReady:      app.onReady,
		OnToggle:     app.handleToggle,
		OnSwitch:     app.handleSwitch,
		OnOpenOutput: app.handleOpenOutput,
		OnQuit:       app.handleQuit,
		Log:          app.logger,
	})

	app.logger.Info("Starting tray loop")

	// Blocks until the tray quits
	app.trayMgr.Run()
}

// onReady finishes initialization once the tray loop is up.
func (a *App) onReady() {
	a.logger.Info("Tray ready, completing startup")

	// Hotkey registration can fail on headless systems; the tray and
	// HTTP API keep working without it.
	hotkeyConfig, err := hotkey.FromSettings(a.config.Hotkey)
	if err != nil {
		a.logger.Error("Invalid hotkey configuration: %v", err)
	} else {
		a.hotkeyMgr = hotkey.New()
		if err := a.hotkeyMgr.Register(hotkeyConfig); err != nil {
			a.logger.Warn("Hotkey registration failed: %v", err)
		} else {
			a.logger.Info("Hotkey registered: %s", hotkey.FormatHotkey(hotkeyConfig.Modifiers, hotkeyConfig.Key))
			go a.hotkeyEventLoop()
		}
	}

	if err := a.httpServer.Start(a.apiHandler); err != nil {
		a.logger.Error("Failed to start control server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("Received shutdown signal")
		a.handleQuit()
		a.trayMgr.Quit()
	}()

	fmt.Println("\n==========================================================")
	fmt.Println("[startup] PlayCap is running")
	fmt.Println("==========================================================")
	fmt.Printf("[control] API endpoint: %s\n", a.httpServer.URL())
	if a.hotkeyMgr != nil && a.hotkeyMgr.IsRunning() {
		current := a.hotkeyMgr.GetConfig()
		fmt.Printf("[hotkey]  Toggle capture: %s\n", hotkey.FormatHotkey(current.Modifiers, current.Key))
	}
	fmt.Printf("[output]  Recordings: %s\n", mustOutputDir(a.config))
	fmt.Printf("[quit]    Ctrl+C or the tray menu\n")
	fmt.Println("==========================================================")

	a.logger.Info("Startup complete")
}

func mustOutputDir(cfg *config.Config) string {
	dir, err := cfg.GetOutputDir()
	if err != nil {
		return cfg.OutputDir
	}
	return dir
}

// hotkeyEventLoop toggles capture on each hotkey press.
func (a *App) hotkeyEventLoop() {
	a.logger.Info("Hotkey event loop started")

	for range a.hotkeyMgr.Events() {
		a.handleToggle()
	}

	a.logger.Info("Hotkey event loop stopped")
}

// handleToggle starts capture when idle and stops it when running.
// Shared by the hotkey and the tray menu.
func (a *App) handleToggle() {
	if a.manager.Recording() {
		a.handleStop()
	} else {
		a.handleStart()
	}
}

func (a *App) handleStart() {
	report := a.manager.StartCapture(a.config.Settings())

	switch report.Outcome {
	case strategy.Failed:
		a.logger.Warn("Capture start failed: %s", report.Reason)
		a.trayMgr.SetState(tray.StateError)
		a.trayMgr.SetStatus("Capture failed")
		a.notifier.CaptureFailed(report.Reason)
	case strategy.Degraded:
		a.logger.Info("Capturing via fallback %s (%s)", report.Strategy, report.Reason)
		a.trayMgr.SetState(tray.StateCapturing)
		a.trayMgr.SetStatus("Capturing (" + report.Strategy + ")")
	default:
		a.logger.Info("Capturing via %s", report.Strategy)
		a.trayMgr.SetState(tray.StateCapturing)
		a.trayMgr.SetStatus("Capturing (" + report.Strategy + ")")
	}
}

func (a *App) handleStop() {
	res := a.manager.StopCapture()
	a.trayMgr.SetState(tray.StateIdle)
	a.trayMgr.SetStatus("Idle")

	if res == nil {
		return
	}
	if res.NothingPlaying {
		a.notifier.NothingPlaying()
	}
	a.logger.Info("Capture stopped: %s", a.manager.StatusReport())
}

// handleSwitch changes the capture mechanism from the tray menu.
func (a *App) handleSwitch(name string) {
	if err := a.manager.Switch(name); err != nil {
		a.logger.Warn("Strategy switch to %s failed: %v", name, err)
		a.trayMgr.SetState(tray.StateError)
		a.trayMgr.SetStatus("Switch failed")
		return
	}
	if a.manager.Recording() {
		a.trayMgr.SetState(tray.StateCapturing)
		a.trayMgr.SetStatus("Capturing (" + name + ")")
	}
}

// handleOpenOutput reveals the recordings folder.
func (a *App) handleOpenOutput() {
	dir, err := a.config.GetOutputDir()
	if err != nil {
		a.logger.Error("Failed to resolve output directory: %v", err)
		return
	}

	go func() {
		if err := exec.Command("open", dir).Run(); err != nil {
			a.logger.Warn("Could not open recordings folder: %v", err)
			fmt.Printf("[output] Recordings folder: %s\n", dir)
		}
	}()
}

// handleQuit shuts the daemon down in dependency order.
func (a *App) handleQuit() {
	a.logger.Info("Shutting down")

	if a.httpServer != nil && a.httpServer.IsRunning() {
		if err := a.httpServer.Stop(); err != nil {
			a.logger.Error("Failed to stop control server: %v", err)
		}
	}

	if a.hotkeyMgr != nil {
		a.hotkeyMgr.Close()
	}

	// Stops any running capture and releases the grant.
	if a.manager != nil {
		a.manager.Cleanup()
	}
	if a.grants != nil {
		a.grants.Release()
	}

	a.logger.Info("Shutdown complete")
}

// ReloadHotkey re-registers the hotkey from the saved configuration.
// Called by the API handler after a settings change touched the hotkey.
func (a *App) ReloadHotkey() error {
	a.logger.Info("Reloading hotkey")

	if a.hotkeyMgr == nil {
		return fmt.Errorf("hotkey manager not initialized")
	}

	freshConfig, err := config.Load(config.GetConfigPath())
	if err != nil {
		a.logger.Error("Failed to reload config: %v", err)
		return fmt.Errorf("failed to reload config: %w", err)
	}

	newConfig, err := hotkey.FromSettings(freshConfig.Hotkey)
	if err != nil {
		return fmt.Errorf("invalid hotkey configuration: %w", err)
	}

	var oldConfig hotkey.Config
	needsRollback := false

	if a.hotkeyMgr.IsRunning() {
		oldConfig = a.hotkeyMgr.GetConfig()
		needsRollback = true

		if err := a.hotkeyMgr.Close(); err != nil {
			a.logger.Error("Failed to unregister old hotkey: %v", err)
			return fmt.Errorf("failed to unregister old hotkey: %w", err)
		}
		// Let the old listener drain before re-registering
		time.Sleep(200 * time.Millisecond)
	}

	if err := a.hotkeyMgr.Register(newConfig); err != nil {
		a.logger.Error("Failed to register new hotkey: %v", err)

		if needsRollback {
			a.logger.Warn("Rolling back to previous hotkey")
			if rollbackErr := a.hotkeyMgr.Register(oldConfig); rollbackErr != nil {
				a.logger.Error("Rollback failed: %v", rollbackErr)
				return fmt.Errorf("failed to register new hotkey and rollback failed: %w, rollback error: %v", err, rollbackErr)
			}
			go a.hotkeyEventLoop()
			a.logger.Info("Rollback complete")
		}

		return fmt.Errorf("failed to register new hotkey: %w", err)
	}

	go a.hotkeyEventLoop()

	display := hotkey.FormatHotkey(newConfig.Modifiers, newConfig.Key)
	a.logger.Info("Hotkey reloaded: %s", display)
	a.notifier.Send("Hotkey changed", "New capture hotkey: "+display)

	return nil
}
