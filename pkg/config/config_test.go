package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM6", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.False(t, cfg.Serial.UseMock)
	assert.Equal(t, 20, cfg.Experiment.NumBaseline)
	assert.Equal(t, 5, cfg.Experiment.NumMeasurements)
	assert.Equal(t, 30*time.Second, cfg.Experiment.IrradiationTime)
	assert.Equal(t, 100*time.Millisecond, cfg.Experiment.StabilizationTime)
	assert.Equal(t, 100*time.Millisecond, cfg.Experiment.MeasurementInterval)
	assert.Equal(t, 1000*time.Second, cfg.Experiment.MeasurementDuration)
	assert.Equal(t, 10, cfg.Batch.Runs)
	assert.Equal(t, "data", cfg.Batch.OutputDir)
	assert.Equal(t, "experiment%d.xlsx", cfg.Batch.FilePattern)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM6", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
  baud_rate: 19200

experiment:
  num_baseline: 10
  num_measurements: 3
  irradiation_time: 45s
  stabilization_time: 200ms
  measurement_interval: 50ms
  measurement_duration: 10m

batch:
  runs: 2
  output_dir: out
  file_pattern: "run-%02d.xlsx"

log:
  level: debug
  format: json
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.BaudRate)
	assert.Equal(t, 10, cfg.Experiment.NumBaseline)
	assert.Equal(t, 3, cfg.Experiment.NumMeasurements)
	assert.Equal(t, 45*time.Second, cfg.Experiment.IrradiationTime)
	assert.Equal(t, 200*time.Millisecond, cfg.Experiment.StabilizationTime)
	assert.Equal(t, 50*time.Millisecond, cfg.Experiment.MeasurementInterval)
	assert.Equal(t, 10*time.Minute, cfg.Experiment.MeasurementDuration)
	assert.Equal(t, 2, cfg.Batch.Runs)
	assert.Equal(t, "out", cfg.Batch.OutputDir)
	assert.Equal(t, "run-%02d.xlsx", cfg.Batch.FilePattern)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
experiment:
  num_baseline: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 20, cfg.Experiment.NumBaseline)
	assert.Equal(t, 1000*time.Second, cfg.Experiment.MeasurementDuration)
	assert.Equal(t, 10, cfg.Batch.Runs)
}

func TestLoad_Rejected(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("experiment:\n  measurement_duration: -1s\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "measurement_duration")
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero durations allowed", func(c *Config) {
			c.Experiment.MeasurementDuration = 0
			c.Experiment.IrradiationTime = 0
		}, ""},
		{"empty port", func(c *Config) { c.Serial.Port = "" }, "serial.port"},
		{"empty port with mock", func(c *Config) {
			c.Serial.Port = ""
			c.Serial.UseMock = true
		}, ""},
		{"no baseline reads", func(c *Config) { c.Experiment.NumBaseline = 0 }, "num_baseline"},
		{"no averaging reads", func(c *Config) { c.Experiment.NumMeasurements = -1 }, "num_measurements"},
		{"negative interval", func(c *Config) { c.Experiment.MeasurementInterval = -time.Millisecond }, "measurement_interval"},
		{"negative runs", func(c *Config) { c.Batch.Runs = -1 }, "batch.runs"},
		{"padded pattern", func(c *Config) { c.Batch.FilePattern = "run-%03d.xlsx" }, ""},
		{"pattern without verb", func(c *Config) { c.Batch.FilePattern = "experiment.xlsx" }, "batch.file_pattern"},
		{"pattern with string verb", func(c *Config) { c.Batch.FilePattern = "run-%s.xlsx" }, "batch.file_pattern"},
		{"pattern with two verbs", func(c *Config) { c.Batch.FilePattern = "run-%d-%d.xlsx" }, "batch.file_pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Experiment.MeasurementDuration = 90 * time.Second
	cfg.Batch.Runs = 3

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 90*time.Second, loaded.Experiment.MeasurementDuration)
	assert.Equal(t, 3, loaded.Batch.Runs)
	assert.Equal(t, cfg.Mock, loaded.Mock)
}
