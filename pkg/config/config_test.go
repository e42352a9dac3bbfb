package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lux.yaml")
	err := os.WriteFile(path, []byte("adapter: generic\ngain: \"1\"\ninterval: 2s\nled_pin: 3\n"), 0o600)
	require.NoError(t, err)

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "generic", conf.Adapter)
	assert.Equal(t, "1", conf.Gain)
	assert.Equal(t, 2*time.Second, conf.Interval)
	assert.Equal(t, 3, conf.LEDPin)
	// untouched keys keep defaults
	assert.Equal(t, "100ms", conf.IntegrationTime)
	assert.Equal(t, "/dev/i2c-1", conf.Device)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: -1s\n"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid interval")
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: [\n"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "could not parse config")
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Default().Validate())

	conf := Default()
	conf.Interval = 0
	assert.ErrorContains(t, conf.Validate(), "invalid interval")

	conf = Default()
	conf.Speed = -1
	assert.ErrorContains(t, conf.Validate(), "invalid bus speed")
}
