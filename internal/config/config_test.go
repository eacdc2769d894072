package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, ":2343", cfg.Server.Listen)
	assert.Equal(t, "mobitec", cfg.Display.Driver)
	assert.Equal(t, 6, cfg.Display.Mobitec.Address)
	assert.Equal(t, 144, cfg.Display.Mobitec.Width)
	assert.Equal(t, 2*time.Hour, cfg.Notifications.TTL)
	assert.Equal(t, 3*time.Second, cfg.Notifications.CycleTime)
	assert.Equal(t, time.Second, cfg.Scheduler.Tick)
	assert.Equal(t, "sensor.co2_meter_co2", cfg.HomeAssistant.Entities[data.MetricCO2])
	assert.Equal(t, 30*time.Minute, cfg.Anomaly.Cooldown)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoad_File(t *testing.T) {
	dir := writeConfig(t, `
display:
  driver: terminal
homeassistant:
  url: http://ha.local:8123
  token: secret
  entities:
    co2: sensor.office_co2
notifications:
  ttl: 30m
anomaly:
  rules:
    co2:
      max: 1500
    temperature:
      min: 16
      max: 28
`)
	cfg, err := Load(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "terminal", cfg.Display.Driver)
	assert.Equal(t, "http://ha.local:8123", cfg.HomeAssistant.URL)
	assert.Equal(t, "sensor.office_co2", cfg.HomeAssistant.Entities[data.MetricCO2])
	assert.Equal(t, "sensor.flur_luft_pm25", cfg.HomeAssistant.Entities[data.MetricPM25])
	assert.Equal(t, 30*time.Minute, cfg.Notifications.TTL)

	require.Contains(t, cfg.Anomaly.Rules, data.MetricCO2)
	co2 := cfg.Anomaly.Rules[data.MetricCO2]
	assert.Nil(t, co2.Min)
	require.NotNil(t, co2.Max)
	assert.Equal(t, 1500.0, *co2.Max)
	require.NotNil(t, cfg.Anomaly.Rules[data.MetricTemperature].Min)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, "homeassistant:\n  token: from-file\n")
	t.Setenv("MOBITEC_HOMEASSISTANT_TOKEN", "from-env")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.HomeAssistant.Token)
}

func TestLoad_Flags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server.listen", ":2343", "")
	require.NoError(t, flags.Parse([]string{"--server.listen=127.0.0.1:9000"}))

	cfg, err := Load(t.TempDir(), flags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"driver", "display:\n  driver: hdmi\n"},
		{"log format", "log:\n  format: xml\n"},
		{"metric", "anomaly:\n  rules:\n    radon:\n      max: 100\n"},
		{"mqtt broker", "mqtt:\n  enabled: true\n"},
		{"yaml", "display: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			assert.Error(t, err)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "Europe/Berlin"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	cfg.Timezone = "Mars/Olympus"
	_, err = cfg.Location()
	assert.Error(t, err)
}
