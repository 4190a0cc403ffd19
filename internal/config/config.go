// Package config handles daemon configuration file management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config represents the daemon configuration
type Config struct {
	// Audio settings
	Audio AudioConfig `json:"audio"`

	// Visualizer settings
	Visualizer VisualizerConfig `json:"visualizer"`

	// Server settings
	Server ServerConfig `json:"server"`

	// Behavior settings
	Behavior BehaviorConfig `json:"behavior"`
}

// AudioConfig contains audio-related settings
type AudioConfig struct {
	// SampleRate for audio output (default: 44100)
	SampleRate int `json:"sampleRate"`

	// BufferSize in milliseconds (default: 100)
	BufferSizeMs int `json:"bufferSizeMs"`

	// Volume level 0.0 - 1.0 (default: 1.0)
	DefaultVolume float64 `json:"defaultVolume"`

	// Loop restarts the track when it ends (default: true)
	Loop bool `json:"loop"`
}

// VisualizerConfig contains analysis and frame settings
type VisualizerConfig struct {
	// BarsCount is the requested resolution, 16 - 192 (default: 64)
	BarsCount int `json:"barsCount"`

	// DomainMode is "frequency" or "time" (default: frequency)
	DomainMode string `json:"domainMode"`

	// SmoothingFactor is the analyzer time constant 0.0 - 1.0 (default: 0.8)
	SmoothingFactor float64 `json:"smoothingFactor"`

	// FrameRate of pushed frames per second (default: 30)
	FrameRate int `json:"frameRate"`

	// Subdivision of the beat pulse: 1, 2 or 4 (default: 1)
	Subdivision int `json:"subdivision"`
}

// ServerConfig contains control surface settings
type ServerConfig struct {
	// SocketPath overrides the IPC socket location
	SocketPath string `json:"socketPath,omitempty"`

	// WebsocketAddr enables the WebSocket endpoint when set, e.g. "127.0.0.1:7878"
	WebsocketAddr string `json:"websocketAddr,omitempty"`
}

// BehaviorConfig contains behavior-related settings
type BehaviorConfig struct {
	// Autoplay starts playback as soon as a file is loaded
	Autoplay bool `json:"autoplay"`

	// MediaSession registers with the OS media controls
	MediaSession bool `json:"mediaSession"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:    44100,
			BufferSizeMs:  100,
			DefaultVolume: 1.0,
			Loop:          true,
		},
		Visualizer: VisualizerConfig{
			BarsCount:       64,
			DomainMode:      "frequency",
			SmoothingFactor: 0.8,
			FrameRate:       30,
			Subdivision:     1,
		},
		Behavior: BehaviorConfig{
			Autoplay:     true,
			MediaSession: true,
		},
	}
}

// Normalize replaces out-of-range values with the nearest valid setting.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.BufferSizeMs <= 0 {
		c.Audio.BufferSizeMs = d.Audio.BufferSizeMs
	}
	c.Audio.DefaultVolume = clamp(c.Audio.DefaultVolume, 0, 1)

	if c.Visualizer.BarsCount < 16 {
		c.Visualizer.BarsCount = 16
	}
	if c.Visualizer.BarsCount > 192 {
		c.Visualizer.BarsCount = 192
	}
	if c.Visualizer.DomainMode != "frequency" && c.Visualizer.DomainMode != "time" {
		c.Visualizer.DomainMode = d.Visualizer.DomainMode
	}
	c.Visualizer.SmoothingFactor = clamp(c.Visualizer.SmoothingFactor, 0, 1)
	if c.Visualizer.FrameRate <= 0 || c.Visualizer.FrameRate > 240 {
		c.Visualizer.FrameRate = d.Visualizer.FrameRate
	}
	switch c.Visualizer.Subdivision {
	case 1, 2, 4:
	default:
		c.Visualizer.Subdivision = d.Visualizer.Subdivision
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.RWMutex
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk and applies BEATD_* environment
// overrides. A missing file is created with defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config file exists
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		if err := m.saveLocked(); err != nil {
			return err
		}
		ApplyEnv(m.config)
		m.config.Normalize()
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyEnv(config)
	config.Normalize()

	m.config = config
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *m.config
	return &c
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update normalizes and stores the configuration, then saves it
func (m *Manager) Update(config *Config) error {
	c := *config
	c.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &c
	return m.saveLocked()
}

// UpdateVisualizer applies fn to the visualizer section and saves.
func (m *Manager) UpdateVisualizer(fn func(v *VisualizerConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *m.config
	fn(&c.Visualizer)
	c.Normalize()
	m.config = &c
	return m.saveLocked()
}
