package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseFile_YAML(t *testing.T) {
	path := writeTempFile(t, "pi.yaml", `
device_id: device-001
server_url: https://collector.example/api
crate_id: crate-7
burst_size: 12
capture_interval: 90
sync_interval: 2m
retention_days: 10
camera_backend: libcamera
sensor_backend: iio
upload_rate: 0.5
`)

	var cfg Config
	cfg.LoadDefaults()
	require.NoError(t, parseFile(&cfg, []string{"-c", path}))

	assert.Equal(t, "device-001", cfg.DeviceID)
	assert.Equal(t, "https://collector.example/api", cfg.ServerURL)
	assert.Equal(t, "crate-7", cfg.CrateID)
	assert.Equal(t, 12, cfg.BurstSize)
	assert.Equal(t, 90*time.Second, cfg.CaptureInterval)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 10, cfg.RetentionDays)
	assert.Equal(t, CameraLibcamera, cfg.CameraBackend)
	assert.Equal(t, SensorIIO, cfg.SensorBackend)
	assert.InDelta(t, 0.5, cfg.UploadRate, 1e-9)

	// untouched keys keep their defaults
	assert.Equal(t, 300*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "camera_0", cfg.CameraName)
}

func TestParseFile_JSON(t *testing.T) {
	path := writeTempFile(t, "agent.json", `{"device_id":"edge-json","heartbeat_interval":"45s","sensor_enabled":false}`)

	var cfg Config
	cfg.LoadDefaults()
	require.NoError(t, parseFile(&cfg, []string{"-config", path}))

	assert.Equal(t, "edge-json", cfg.DeviceID)
	assert.Equal(t, 45*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.SensorEnabled)
	assert.Equal(t, 10, cfg.BurstSize)
}

func TestParseFile_NoFlagNoChanges(t *testing.T) {
	cfg := Config{DeviceID: "keep"}
	require.NoError(t, parseFile(&cfg, []string{"-d", "x"}))
	assert.Equal(t, "keep", cfg.DeviceID)
}

func TestParseFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var cfg Config
		err := parseFile(&cfg, []string{"-c", filepath.Join(t.TempDir(), "nope.yaml")})
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeTempFile(t, "bad.json", `{ this is not json`)
		var cfg Config
		require.Error(t, parseFile(&cfg, []string{"-c", path}))
	})

	t.Run("invalid duration", func(t *testing.T) {
		path := writeTempFile(t, "bad.yaml", "sync_interval: soon\n")
		var cfg Config
		require.Error(t, parseFile(&cfg, []string{"-c", path}))
	})
}
