package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P8labs/foxd/internal/capture"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "FOXD_DATABASE_URL", "HTTP_ADDR", "FOXD_API_LISTEN", "LOG_LEVEL", "FOXD_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadFile_DefaultsWithDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://foxd@localhost/foxd")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)

	assert.Equal(t, "wlan0", cfg.Daemon.Interface)
	assert.Equal(t, capture.Available, cfg.Daemon.CaptureEnabled)
	assert.True(t, cfg.Daemon.NeighborEnabled)
	assert.Equal(t, "arp or (udp port 67 or udp port 68)", cfg.Daemon.CaptureFilter)
	assert.Equal(t, 30*time.Second, cfg.Daemon.NeighborCheckInterval())
	assert.Equal(t, 60*time.Second, cfg.Daemon.DeviceTimeout())
	assert.Equal(t, 100, cfg.Daemon.EventQueueCapacity)
	assert.True(t, cfg.Daemon.LogCleanupEnabled)
	assert.Equal(t, 30, cfg.Daemon.LogRetentionDays)
	assert.Equal(t, "@every 24h", cfg.Daemon.LogCleanupSchedule)
	assert.Equal(t, 5*time.Second, cfg.Daemon.ShutdownGrace())
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "postgres://foxd@localhost/foxd", cfg.Database.URL)
}

func TestLoadFile_ReadsTOMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foxd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[daemon]
interface = "eth1"
device_timeout_secs = 120
log_cleanup_enabled = false

[database]
url = "postgres://file/foxd"

[api]
host = "0.0.0.0"
port = 9090
`), 0o600))

	clearEnv(t)
	t.Setenv("FOXD_DAEMON_INTERFACE", "br0")
	t.Setenv("FOXD_DAEMON_CAPTURE_ENABLED", "false")

	cfg, err := LoadFile(path, true)
	require.NoError(t, err)

	assert.Equal(t, "br0", cfg.Daemon.Interface)
	assert.False(t, cfg.Daemon.CaptureEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Daemon.DeviceTimeout())
	assert.False(t, cfg.Daemon.LogCleanupEnabled)
	assert.Equal(t, "postgres://file/foxd", cfg.Database.URL)
	assert.Equal(t, "0.0.0.0:9090", cfg.API.Addr())
}

func TestLoadFile_CaptureDefaultFollowsBuild(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://foxd@localhost/foxd")
	t.Setenv("FOXD_DAEMON_CAPTURE_ENABLED", "")

	path := filepath.Join(t.TempDir(), "foxd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[daemon]\ninterface = \"eth0\"\n"), 0o600))

	cfg, err := LoadFile(path, true)
	require.NoError(t, err)
	assert.Equal(t, capture.Available, cfg.Daemon.CaptureEnabled)
	if !capture.Available {
		// Neighbor polling alone must still produce events.
		assert.True(t, cfg.Daemon.NeighborEnabled)
	}

	require.NoError(t, os.WriteFile(path, []byte("[daemon]\ncapture_enabled = true\n"), 0o600))
	cfg, err = LoadFile(path, true)
	require.NoError(t, err)
	assert.True(t, cfg.Daemon.CaptureEnabled)
}

func TestLoadFile_HTTPAddrOverridesHostPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://x/y")
	t.Setenv("HTTP_ADDR", ":8081")

	cfg, err := LoadFile("", false)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.API.Addr())
}

func TestLoadFile_MissingRequiredFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"), true)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://x/y")
	cfg, err := LoadFile("", false)
	require.NoError(t, err)

	bad := cfg
	bad.Database.URL = ""
	assert.ErrorContains(t, bad.Validate(), "database.url")

	bad = cfg
	bad.Daemon.NeighborCheckIntervalSec = 0
	assert.ErrorContains(t, bad.Validate(), "neighbor_check_interval_secs")

	bad = cfg
	bad.Daemon.DeviceTimeoutSec = -1
	assert.ErrorContains(t, bad.Validate(), "device_timeout_secs")

	bad = cfg
	bad.Daemon.EventQueueCapacity = 0
	assert.ErrorContains(t, bad.Validate(), "event_queue_capacity")
}
