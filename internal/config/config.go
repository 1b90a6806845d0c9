package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
)

// Config is the application configuration file.
type Config struct {
	ServerPort int    `json:"server_port" yaml:"server_port"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogPretty  bool   `json:"log_pretty" yaml:"log_pretty"`

	Display  DisplayConfig  `json:"display" yaml:"display"`
	Preview  PreviewConfig  `json:"preview" yaml:"preview"`
	Media    MediaConfig    `json:"media" yaml:"media"`
	Infrared InfraredConfig `json:"infrared" yaml:"infrared"`
	MQTT     MQTTConfig     `json:"mqtt" yaml:"mqtt"`
}

// MonitorConfig pins a monitor's geometry when enumeration is unavailable.
type MonitorConfig struct {
	Name   string `json:"name" yaml:"name"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// DisplayConfig configures the presentation surface.
type DisplayConfig struct {
	Enabled      bool            `json:"enabled" yaml:"enabled"`
	FPS          int             `json:"fps" yaml:"fps"`
	Headless     bool            `json:"headless" yaml:"headless"`
	MonitorIndex int             `json:"monitor_index" yaml:"monitor_index"`
	Monitors     []MonitorConfig `json:"monitors" yaml:"monitors"`
}

// PreviewConfig configures the operator preview stream.
type PreviewConfig struct {
	Width      int  `json:"width" yaml:"width"`
	Height     int  `json:"height" yaml:"height"`
	FPS        int  `json:"fps" yaml:"fps"`
	Quality    int  `json:"quality" yaml:"quality"`
	Processed  bool `json:"processed" yaml:"processed"`
	ShowStatus bool `json:"show_status" yaml:"show_status"`
}

// MediaConfig locates uploaded media and presets.
type MediaConfig struct {
	UploadsDir    string `json:"uploads_dir" yaml:"uploads_dir"`
	PresetsDir    string `json:"presets_dir" yaml:"presets_dir"`
	DefaultPreset string `json:"default_preset" yaml:"default_preset"`
}

type InfraredConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// MQTTConfig configures the status emitter.
type MQTTConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Broker     string `json:"broker" yaml:"broker"`
	Topic      string `json:"topic" yaml:"topic"`
	ClientID   string `json:"client_id" yaml:"client_id"`
	IntervalMS int    `json:"interval_ms" yaml:"interval_ms"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager loads configFile, or ~/.config/flexiview/config.yaml when empty.
// A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		actualConfigPath = filepath.Join(homeDir, ".config", "flexiview", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = m.getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Int("port", m.config.ServerPort).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the built-in configuration. Relative media directories are
// resolved against dir.
func Defaults(dir string) *Config {
	return &Config{
		ServerPort: 8000,
		LogLevel:   "info",
		LogPretty:  true,
		Display: DisplayConfig{
			Enabled:  true,
			FPS:      60,
			Monitors: []MonitorConfig{},
		},
		Preview: PreviewConfig{
			Width:      800,
			Height:     450,
			FPS:        30,
			Quality:    80,
			Processed:  true,
			ShowStatus: true,
		},
		Media: MediaConfig{
			UploadsDir: filepath.Join(dir, "uploads"),
			PresetsDir: filepath.Join(dir, "presets"),
		},
		Infrared: InfraredConfig{Enabled: true},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			Topic:      "flexiview/status",
			ClientID:   "flexiview",
			IntervalMS: 1000,
		},
	}
}

func (m *Manager) getDefaults() *Config {
	return Defaults(m.GetConfigDir())
}

// load reads the configuration from disk. Fields missing from the file keep
// their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := m.getDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	m.normalize(cfg)

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

func (m *Manager) normalize(cfg *Config) {
	def := m.getDefaults()
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		cfg.ServerPort = def.ServerPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Display.FPS <= 0 {
		cfg.Display.FPS = def.Display.FPS
	}
	if cfg.Display.Monitors == nil {
		cfg.Display.Monitors = []MonitorConfig{}
	}
	if cfg.Preview.Width <= 0 || cfg.Preview.Height <= 0 {
		cfg.Preview.Width, cfg.Preview.Height = def.Preview.Width, def.Preview.Height
	}
	if cfg.Preview.FPS <= 0 {
		cfg.Preview.FPS = def.Preview.FPS
	}
	if cfg.Preview.Quality <= 0 || cfg.Preview.Quality > 100 {
		cfg.Preview.Quality = def.Preview.Quality
	}
	if cfg.Media.UploadsDir == "" {
		cfg.Media.UploadsDir = def.Media.UploadsDir
	}
	if cfg.Media.PresetsDir == "" {
		cfg.Media.PresetsDir = def.Media.PresetsDir
	}
	if cfg.MQTT.IntervalMS <= 0 {
		cfg.MQTT.IntervalMS = def.MQTT.IntervalMS
	}
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return m.getDefaults()
	}

	cfg := *m.config
	cfg.Display.Monitors = append([]MonitorConfig{}, m.config.Display.Monitors...)
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = m.getDefaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update updates the entire configuration
func (m *Manager) Update(cfg *Config) error {
	m.normalize(cfg)
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port number: %d", port)
	}
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort gets the server port
func (m *Manager) GetPort() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ServerPort
}

var validLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	level = strings.ToLower(level)
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error)", level)
	}
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetLogLevel gets the log level
func (m *Manager) GetLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.LogLevel
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}

// GetViper returns a viper instance holding the current configuration, keyed
// by the YAML field names (e.g. "preview.quality").
func (m *Manager) GetViper() *viper.Viper {
	data, err := yaml.Marshal(m.Get())
	if err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Failed to marshal config")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		logger.WithComponent("config").Error().Err(err).Msg("Failed to load config into viper")
	}
	return v
}

// SetValue assigns a single dotted key and saves. The value is parsed as a
// YAML scalar so "9090" and "true" keep their types. Unknown keys are rejected.
func (m *Manager) SetValue(key, value string) error {
	v := m.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	var parsed any = value
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}
	v.Set(key, parsed)

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	cfg := m.getDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Update(cfg)
}
