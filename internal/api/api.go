// Package api implements the localhost JSON control surface of the
// capture daemon.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/capture"
	"github.com/playcap/playcap/internal/config"
	"github.com/playcap/playcap/internal/hotkey"
	"github.com/playcap/playcap/internal/logger"
	"github.com/playcap/playcap/internal/strategy"
)

// CaptureController is the slice of the strategy manager the API
// drives. Narrowed to an interface so handlers are testable without
// live audio hardware.
type CaptureController interface {
	StartCapture(audio.Settings) strategy.StartReport
	StopCapture() *capture.Result
	Switch(name string) error
	Prefer(name string)
	Recording() bool
	ActiveStrategy() string
	StatusReport() string
}

// Handler manages API endpoints
type Handler struct {
	config          *config.Config
	controller      CaptureController
	log             *logger.Logger
	onHotkeyChanged func() error // reloads the hotkey in the running daemon

	// listDevices and configPath are swappable for tests; they default
	// to audio.ListDevices and config.GetConfigPath.
	listDevices func() ([]audio.Device, error)
	configPath  func() string
}

// New creates a new API handler
func New(cfg *config.Config, controller CaptureController, log *logger.Logger, onHotkeyChanged func() error) *Handler {
	return &Handler{
		config:          cfg,
		controller:      controller,
		log:             log,
		onHotkeyChanged: onHotkeyChanged,
		listDevices:     audio.ListDevices,
		configPath:      config.GetConfigPath,
	}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/capture/start", h.handleCaptureStart)
	mux.HandleFunc("/api/capture/stop", h.handleCaptureStop)
	mux.HandleFunc("/api/capture/switch", h.handleCaptureSwitch)
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleStatus handles GET /api/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"recording": h.controller.Recording(),
		"strategy":  h.controller.ActiveStrategy(),
		"status":    h.controller.StatusReport(),
	})
}

// handleCaptureStart handles POST /api/capture/start
func (h *Handler) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.controller.StartCapture(h.config.Settings())

	switch report.Outcome {
	case strategy.Failed:
		h.log.Warn("API capture start failed: %s", report.Reason)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "failed",
			"reason": report.Reason,
		})
	case strategy.Degraded:
		writeJSON(w, map[string]interface{}{
			"status":   "degraded",
			"strategy": report.Strategy,
			"reason":   report.Reason,
		})
	default:
		writeJSON(w, map[string]interface{}{
			"status":   "started",
			"strategy": report.Strategy,
		})
	}
}

// handleCaptureStop handles POST /api/capture/stop
func (h *Handler) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := h.controller.StopCapture()
	if res == nil {
		writeJSON(w, map[string]interface{}{
			"status": "idle",
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":          "stopped",
		"bytes":           res.Files.RawBytes,
		"duration_ms":     res.Duration.Milliseconds(),
		"valid_chunks":    res.ValidChunks,
		"silent_chunks":   res.SilentChunks,
		"stalled_reads":   res.StalledReads,
		"nothing_playing": res.NothingPlaying,
		"container":       res.Files.ContainerPath,
		"raw":             res.Files.RawPath,
		"compressed":      res.Files.CompressedPath,
	})
}

// handleCaptureSwitch handles POST /api/capture/switch
func (h *Handler) handleCaptureSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Strategy string `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Strategy == "" {
		http.Error(w, "strategy is required", http.StatusBadRequest)
		return
	}

	if err := h.controller.Switch(request.Strategy); err != nil {
		h.log.Warn("API strategy switch failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "failed",
			"reason": err.Error(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":   "switched",
		"strategy": request.Strategy,
	})
}

// handleSettings handles GET and PUT /api/settings
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.config)
	case http.MethodPut:
		h.putSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// putSettings updates and persists the configuration. Changes take
// effect on the next capture session.
func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.config.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.config.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid configuration: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.config.Save(h.configPath()); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
		return
	}

	if _, ok := updates["preferred_strategy"]; ok {
		h.controller.Prefer(h.config.PreferredStrategy)
	}

	if _, ok := updates["hotkey"]; ok && h.onHotkeyChanged != nil {
		if err := h.onHotkeyChanged(); err != nil {
			h.log.Warn("Hotkey reload after settings change failed: %v", err)
			writeJSON(w, map[string]string{
				"status":  "partial",
				"message": fmt.Sprintf("Settings saved but hotkey reload failed: %v", err),
			})
			return
		}
	}

	writeJSON(w, map[string]string{
		"status": "success",
	})
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := h.listDevices()
	if err != nil {
		// No capture hardware is a valid state for the playback
		// strategy; report the default pseudo-device.
		devices = []audio.Device{{ID: -1, Name: "System default", IsDefault: true}}
	}

	writeJSON(w, map[string]interface{}{
		"devices": devices,
	})
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request config.HotkeyConfig
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := hotkey.FromSettings(request)
	if err != nil {
		writeJSON(w, map[string]interface{}{
			"valid":   false,
			"message": err.Error(),
		})
		return
	}

	conflicts := hotkey.CheckConflicts(cfg.Modifiers, cfg.Key)
	conflictNames := []string{}
	for _, c := range conflicts {
		conflictNames = append(conflictNames, c.Name)
	}

	writeJSON(w, map[string]interface{}{
		"valid":     true,
		"display":   hotkey.FormatHotkey(cfg.Modifiers, cfg.Key),
		"conflicts": conflictNames,
	})
}
