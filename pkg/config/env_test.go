package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSerialPort, "/dev/ttyS3")
	t.Setenv(EnvListenPort, "8081")
	t.Setenv(EnvInterface, "wlan0")
	t.Setenv(EnvAddress, "192.168.4.1")
	t.Setenv(EnvMQTTBroker, "tcp://localhost:1883")
	t.Setenv(EnvMQTTTopic, "bench/probe")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "/dev/ttyS3", cfg.Serial.Port)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "wlan0", cfg.Network.Interface)
	assert.Equal(t, "192.168.4.1", cfg.Network.Address)
	assert.Equal(t, "tcp://localhost:1883", cfg.Uplink.Broker)
	assert.Equal(t, "bench/probe", cfg.Uplink.Topic)
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	t.Setenv(EnvListenPort, "eighty")

	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
	assert.Equal(t, 80, cfg.Server.Port)
}

func TestApplyEnv_Unset(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ENVMON_INTERFACE=eth1\n"), 0644))

	// Register for cleanup; godotenv does not overwrite variables that are already set.
	t.Setenv(EnvInterface, "")
	require.NoError(t, os.Unsetenv(EnvInterface))

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "eth1", os.Getenv(EnvInterface))

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "eth1", cfg.Network.Interface)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
