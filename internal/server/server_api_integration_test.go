package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/playcap/playcap/internal/api"
	"github.com/playcap/playcap/internal/audio"
	"github.com/playcap/playcap/internal/capture"
	"github.com/playcap/playcap/internal/config"
	"github.com/playcap/playcap/internal/strategy"
)

// idleController satisfies api.CaptureController without touching audio
// hardware.
type idleController struct{}

func (idleController) StartCapture(audio.Settings) strategy.StartReport {
	return strategy.StartReport{Outcome: strategy.Failed, Reason: "no usable capture mechanism"}
}
func (idleController) StopCapture() *capture.Result { return nil }
func (idleController) Switch(string) error          { return nil }
func (idleController) Prefer(string)                {}
func (idleController) Recording() bool              { return false }
func (idleController) ActiveStrategy() string       { return "" }
func (idleController) StatusReport() string         { return "state=Idle" }

// TestServerAPIIntegration wires the API handler into the server the
// way the daemon does: build the handler, pass it to Start as a route
// registrar, then talk to it over HTTP.
func TestServerAPIIntegration(t *testing.T) {
	log := newTestLogger(t)

	serverConfig := DefaultConfig()
	serverConfig.Port = 0 // Use random port
	server := New(serverConfig, log)

	apiHandler := api.New(config.DefaultConfig(), idleController{}, log, nil)

	if err := server.Start(apiHandler); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Status endpoint reflects the idle controller
	resp, err := http.Get(server.URL() + "/api/status")
	if err != nil {
		t.Fatalf("Failed to make request to API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status response: %v", err)
	}
	if status["recording"] != false {
		t.Errorf("Expected recording false, got %v", status["recording"])
	}

	// Settings endpoint serves the configuration as JSON
	resp2, err := http.Get(server.URL() + "/api/settings")
	if err != nil {
		t.Fatalf("Failed to request settings: %v", err)
	}
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp2.StatusCode)
	}

	var cfg config.Config
	if err := json.NewDecoder(resp2.Body).Decode(&cfg); err != nil {
		t.Errorf("Failed to decode settings response: %v", err)
	}
	if cfg.SampleRate == 0 {
		t.Error("Expected settings payload to carry a sample rate")
	}
}

// TestServerAPIStartConflict checks that a failed capture start maps to
// an HTTP conflict end to end.
func TestServerAPIStartConflict(t *testing.T) {
	log := newTestLogger(t)

	serverConfig := DefaultConfig()
	serverConfig.Port = 0
	server := New(serverConfig, log)

	apiHandler := api.New(config.DefaultConfig(), idleController{}, log, nil)

	if err := server.Start(apiHandler); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Post(server.URL()+"/api/capture/start", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.StatusCode)
	}
}
