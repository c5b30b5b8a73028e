package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "photorig.yaml"

// Config represents the application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Batch      BatchConfig      `yaml:"batch"`
	Log        LogConfig        `yaml:"log"`
	Mock       MockConfig       `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	UseMock  bool   `yaml:"use_mock"` // Talk to the simulated rig instead of a port
}

// ExperimentConfig holds the timing and sampling parameters of one run.
// It is treated as immutable once handed to the measurement engine.
type ExperimentConfig struct {
	NumBaseline         int           `yaml:"num_baseline"`         // Raw reads averaged into I0
	NumMeasurements     int           `yaml:"num_measurements"`     // Reads averaged per data point
	IrradiationTime     time.Duration `yaml:"irradiation_time"`     // UV exposure
	StabilizationTime   time.Duration `yaml:"stabilization_time"`   // Settle delay after LED changes
	MeasurementInterval time.Duration `yaml:"measurement_interval"` // Delay after each averaged read
	MeasurementDuration time.Duration `yaml:"measurement_duration"` // Monitoring deadline
}

// BatchConfig describes the sequence of runs.
type BatchConfig struct {
	Runs        int    `yaml:"runs"`
	OutputDir   string `yaml:"output_dir"`
	FilePattern string `yaml:"file_pattern"` // fmt pattern taking the run index
}

// LogConfig selects logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// MockConfig contains simulated rig configuration.
type MockConfig struct {
	Intensity       float64       `yaml:"intensity"`        // Transmitted intensity with green LED on, sample bleached
	DarkIntensity   float64       `yaml:"dark_intensity"`   // Reading with green LED off
	MaxAbsorbance   float64       `yaml:"max_absorbance"`   // Absorbance reached after saturating UV exposure
	SwitchingTime   time.Duration `yaml:"switching_time"`   // Time constant of UV-induced colouring
	RelaxationTime  time.Duration `yaml:"relaxation_time"`  // Time constant of thermal decay
	NoiseLevel      float64       `yaml:"noise_level"`      // Relative amplitude of the deterministic ripple
	Temperature     float64       `yaml:"temperature"`      // Reported temperature (°C)
	ResponseLatency time.Duration `yaml:"response_latency"` // Simulated time per read response
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM6", // "/dev/ttyACM0" on Linux
			BaudRate: 9600,
		},
		Experiment: ExperimentConfig{
			NumBaseline:         20,
			NumMeasurements:     5,
			IrradiationTime:     30 * time.Second,
			StabilizationTime:   100 * time.Millisecond,
			MeasurementInterval: 100 * time.Millisecond,
			MeasurementDuration: 1000 * time.Second,
		},
		Batch: BatchConfig{
			Runs:        10,
			OutputDir:   "data",
			FilePattern: "experiment%d.xlsx",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mock: MockConfig{
			Intensity:       1000.0,
			DarkIntensity:   2.0,
			MaxAbsorbance:   0.8,
			SwitchingTime:   10 * time.Second,
			RelaxationTime:  300 * time.Second,
			NoiseLevel:      0.002,
			Temperature:     23.5,
			ResponseLatency: 20 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the measurement sequence cannot run with.
// Zero durations are allowed; a zero monitoring duration yields a single row.
func (c *Config) Validate() error {
	var errs []error

	if c.Serial.Port == "" && !c.Serial.UseMock {
		errs = append(errs, errors.New("serial.port is empty"))
	}
	if c.Experiment.NumBaseline <= 0 {
		errs = append(errs, fmt.Errorf("experiment.num_baseline must be positive, got %d", c.Experiment.NumBaseline))
	}
	if c.Experiment.NumMeasurements <= 0 {
		errs = append(errs, fmt.Errorf("experiment.num_measurements must be positive, got %d", c.Experiment.NumMeasurements))
	}
	for name, d := range map[string]time.Duration{
		"irradiation_time":     c.Experiment.IrradiationTime,
		"stabilization_time":   c.Experiment.StabilizationTime,
		"measurement_interval": c.Experiment.MeasurementInterval,
		"measurement_duration": c.Experiment.MeasurementDuration,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("experiment.%s must not be negative, got %s", name, d))
		}
	}
	if c.Batch.Runs < 0 {
		errs = append(errs, fmt.Errorf("batch.runs must not be negative, got %d", c.Batch.Runs))
	}
	if err := validatePattern(c.Batch.FilePattern); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// validatePattern checks that the file pattern takes exactly one integer verb,
// so every run index maps to its own file name.
func validatePattern(p string) error {
	first, second := fmt.Sprintf(p, 0), fmt.Sprintf(p, 1)
	if strings.Contains(first, "%!") || first == second {
		return fmt.Errorf("batch.file_pattern %q must contain one integer verb such as %%d", p)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Experiment.NumBaseline == 0 {
		c.Experiment.NumBaseline = def.Experiment.NumBaseline
	}
	if c.Experiment.NumMeasurements == 0 {
		c.Experiment.NumMeasurements = def.Experiment.NumMeasurements
	}

	if c.Batch.OutputDir == "" {
		c.Batch.OutputDir = def.Batch.OutputDir
	}
	if c.Batch.FilePattern == "" {
		c.Batch.FilePattern = def.Batch.FilePattern
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Mock.Intensity == 0 {
		c.Mock.Intensity = def.Mock.Intensity
	}
	if c.Mock.SwitchingTime == 0 {
		c.Mock.SwitchingTime = def.Mock.SwitchingTime
	}
	if c.Mock.RelaxationTime == 0 {
		c.Mock.RelaxationTime = def.Mock.RelaxationTime
	}
}
