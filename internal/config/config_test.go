package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 60, cfg.Display.FPS)
	assert.Equal(t, 800, cfg.Preview.Width)
	assert.True(t, cfg.Preview.Processed)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "presets"), cfg.Media.PresetsDir)
	assert.Equal(t, filepath.Dir(path), m.GetConfigDir())
	assert.Equal(t, path, m.GetConfigPath())
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "server_port: 9090\npreview:\n  quality: 500\n  width: 640\n  height: 360\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	cfg := m.Get()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 640, cfg.Preview.Width)
	assert.Equal(t, 80, cfg.Preview.Quality, "out of range quality reset")
	assert.Equal(t, 30, cfg.Preview.FPS)
	assert.True(t, cfg.Preview.Processed)
	assert.True(t, cfg.Display.Enabled)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: [1, 2"), 0644))
	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.SetPort(9999))
	require.NoError(t, m.SetLogLevel("DEBUG"))
	assert.Error(t, m.SetPort(0))
	assert.Error(t, m.SetLogLevel("loud"))

	again, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, again.GetPort())
	assert.Equal(t, "debug", again.GetLogLevel())
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	cfg := m.Get()
	cfg.ServerPort = 1
	cfg.Display.Monitors = append(cfg.Display.Monitors, MonitorConfig{Width: 1})
	assert.Equal(t, 8000, m.Get().ServerPort)
	assert.Empty(t, m.Get().Display.Monitors)
}

func TestViperKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	v := m.GetViper()
	assert.Equal(t, 8000, v.GetInt("server_port"))
	assert.Equal(t, 80, v.GetInt("preview.quality"))
	assert.False(t, v.IsSet("nope"))

	require.NoError(t, m.SetValue("preview.quality", "65"))
	require.NoError(t, m.SetValue("mqtt.enabled", "true"))
	require.NoError(t, m.SetValue("mqtt.client_id", "1234"))
	assert.Error(t, m.SetValue("nope", "1"))

	again, err := NewManager(path)
	require.NoError(t, err)
	cfg := again.Get()
	assert.Equal(t, 65, cfg.Preview.Quality)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "1234", cfg.MQTT.ClientID)
}
