package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/playcap/playcap/internal/audio"
)

// Config holds application configuration
type Config struct {
	Hotkey            HotkeyConfig `json:"hotkey"`
	OutputDir         string       `json:"output_dir"`
	SampleRate        int          `json:"sample_rate"`
	Channels          int          `json:"channels"`
	BufferMultiplier  int          `json:"buffer_multiplier"`
	OpusBitrate       int          `json:"opus_bitrate"`       // bits/s per channel, 0 = codec default
	PreferredStrategy string       `json:"preferred_strategy"` // "", "playback" or "device"
	AudioDeviceID     int          `json:"audio_device_id"`
	ServerPort        int          `json:"server_port"`
	mu                sync.RWMutex
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"` // e.g., "Space"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	defaults := audio.DefaultSettings()

	return &Config{
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "R",
		},
		OutputDir:         filepath.Join(homeDir, "Recordings", "PlayCap"),
		SampleRate:        defaults.SampleRate,
		Channels:          defaults.Channels,
		BufferMultiplier:  defaults.BufferMultiplier,
		OpusBitrate:       0,
		PreferredStrategy: "",
		AudioDeviceID:     -1, // -1 means use system default device
		ServerPort:        8737,
	}
}

// Load loads configuration from the specified path
func Load(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Fill gaps left by hand-edited files
	if config.Hotkey.Key == "" {
		config.Hotkey.Key = "R"
	}
	if config.ServerPort == 0 {
		config.ServerPort = DefaultConfig().ServerPort
	}

	return &config, nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "playcap", "config.json")
}

// Update updates configuration fields
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "output_dir":
			if v, ok := value.(string); ok {
				c.OutputDir = v
			}
		case "sample_rate":
			if v, ok := value.(float64); ok {
				c.SampleRate = int(v)
			}
		case "channels":
			if v, ok := value.(float64); ok {
				c.Channels = int(v)
			}
		case "buffer_multiplier":
			if v, ok := value.(float64); ok {
				c.BufferMultiplier = int(v)
			}
		case "opus_bitrate":
			if v, ok := value.(float64); ok {
				c.OpusBitrate = int(v)
			}
		case "preferred_strategy":
			if v, ok := value.(string); ok {
				if v != "" && v != "playback" && v != "device" {
					return fmt.Errorf("invalid preferred_strategy: %s", v)
				}
				c.PreferredStrategy = v
			}
		case "audio_device_id":
			if v, ok := value.(float64); ok {
				c.AudioDeviceID = int(v)
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					c.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					c.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					c.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					c.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					c.Hotkey.Key = key
				}
			}
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Hotkey:            c.Hotkey,
		OutputDir:         c.OutputDir,
		SampleRate:        c.SampleRate,
		Channels:          c.Channels,
		BufferMultiplier:  c.BufferMultiplier,
		OpusBitrate:       c.OpusBitrate,
		PreferredStrategy: c.PreferredStrategy,
		AudioDeviceID:     c.AudioDeviceID,
		ServerPort:        c.ServerPort,
	}
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// GetOutputDir returns the expanded output directory
func (c *Config) GetOutputDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ExpandPath(c.OutputDir)
}

// Settings builds the capture settings from the configured values
func (c *Config) Settings() audio.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return audio.Settings{
		SampleRate:       c.SampleRate,
		Channels:         c.Channels,
		BufferMultiplier: c.BufferMultiplier,
	}
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	settings := audio.Settings{
		SampleRate:       c.SampleRate,
		Channels:         c.Channels,
		BufferMultiplier: c.BufferMultiplier,
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid capture settings: %w", err)
	}

	if c.OpusBitrate < 0 || c.OpusBitrate > 512000 {
		return fmt.Errorf("invalid opus_bitrate: %d (must be between 0 and 512000)", c.OpusBitrate)
	}

	if c.PreferredStrategy != "" && c.PreferredStrategy != "playback" && c.PreferredStrategy != "device" {
		return fmt.Errorf("invalid preferred_strategy: %s (must be 'playback' or 'device')", c.PreferredStrategy)
	}

	if c.ServerPort < 1024 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d (must be between 1024 and 65535)", c.ServerPort)
	}

	return nil
}
