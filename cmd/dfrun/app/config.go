package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rfrecon/wardrive-df/internal/df"
)

const (
	defaultBatchSize  = 256
	defaultFlushCount = 64
	defaultSensorType = "wifi-monitor"
	defaultSensorID   = "capture0"
)

// Config represents the main application configuration
type Config struct {
	Settings       Settings            `yaml:"settings"`
	Engine         df.Config           `yaml:"engine"`
	AccessPoints   []df.AccessPoint    `yaml:"accessPoints"`
	PathLossPoints []df.PathLossSample `yaml:"pathLossPoints"`
	Telemetry      TelemetryConfig     `yaml:"telemetry"`
	Input          InputConfig         `yaml:"input"`
	Storage        StorageConfig       `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TelemetryConfig pins the sensor platform to a fixed survey position for
// measurements that arrive without one.
type TelemetryConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Altitude  *float64 `yaml:"altitude"`
}

// InputConfig describes the measurement stream to process.
type InputConfig struct {
	MeasurementsFile string `yaml:"measurementsFile"`
	BatchSize        int    `yaml:"batchSize"`
	FlushCount       int    `yaml:"flushCount"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	SensorType    string `yaml:"sensorType"`
	SensorID      string `yaml:"sensorID"`
}

// LoadConfig reads and validates the YAML configuration file. Engine
// tunables not present in the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Config{
		Engine: df.DefaultConfig(),
		Input: InputConfig{
			BatchSize:  defaultBatchSize,
			FlushCount: defaultFlushCount,
		},
		Storage: StorageConfig{
			SensorType: defaultSensorType,
			SensorID:   defaultSensorID,
		},
	}
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("validating engine configuration: %w", err)
	}
	if config.Input.MeasurementsFile == "" {
		return nil, fmt.Errorf("no measurements file specified")
	}
	if config.Input.BatchSize <= 0 || config.Input.FlushCount <= 0 || config.Input.FlushCount > config.Input.BatchSize {
		return nil, fmt.Errorf("invalid input batching: batchSize=%d, flushCount=%d", config.Input.BatchSize, config.Input.FlushCount)
	}

	return &config, nil
}
