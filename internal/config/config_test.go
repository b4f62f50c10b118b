package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# broker
MQTT_BROKER = tcp://10.0.0.5:1883
TOPIC_RIGID_BODY=natnet/rb
FEMUR_ID=7
STYLUS_ID=9
CONNECTION_TIMEOUT=5000
POSITION_SCALE=1
EXPORT_DIR=/tmp/exports
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.MQTTBroker)
	assert.Equal(t, "natnet/rb", cfg.TopicRigidBody)
	assert.Equal(t, 7, cfg.FemurID)
	assert.Equal(t, 9, cfg.StylusID)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, 1.0, cfg.PositionScale)
	assert.Equal(t, "/tmp/exports", cfg.ExportDir)

	// Keys left out keep their defaults.
	def := Default()
	assert.Equal(t, 2*time.Second, cfg.CheckInterval())
	assert.Equal(t, def.TopicStreamStatus, cfg.TopicStreamStatus)
	assert.Equal(t, def.WebServerPort, cfg.WebServerPort)
}

func TestDefaultIsValid(t *testing.T) {
	def := Default()
	require.NoError(t, def.validate())
	assert.Equal(t, 15*time.Second, def.Timeout())
	assert.Equal(t, 2*time.Second, def.CheckInterval())
	assert.Equal(t, 1000.0, def.PositionScale)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing equals", "MQTT_BROKER\n", "invalid config line 1"},
		{"unknown key", "\nNOT_A_KEY=1\n", `config line 2: unknown config key: "NOT_A_KEY"`},
		{"not a number", "FEMUR_ID=femur\n", "config line 1: invalid FEMUR_ID"},
		{"bad scale", "POSITION_SCALE=mm\n", "invalid POSITION_SCALE"},
		{"same ids", "FEMUR_ID=3\nSTYLUS_ID=3\n", "must differ"},
		{"zero timeout", "CONNECTION_TIMEOUT=0\n", "CONNECTION_TIMEOUT must be positive"},
		{"empty broker", "MQTT_BROKER=\n", "MQTT_BROKER is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "tracker_config.txt"))
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.ExportDir)
	assert.Equal(t, 1, cfg.FemurID)
	assert.Equal(t, 2, cfg.StylusID)
}
