package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rfrecon/wardrive-df/internal/df"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
engine:
  enabled: [rss_triangulation, beamforming]
  primary: rss_triangulation
  fallback: beamforming
  music:
    searchStart: -90
    searchEnd: 90
accessPoints:
  - bssid: "aa:bb:cc:dd:ee:01"
    latitude: 40.0031
    longitude: -74.0012
    txPower: 20
telemetry:
  enabled: true
  latitude: 40.0
  longitude: -74.0
input:
  measurementsFile: capture.jsonl
  batchSize: 128
  flushCount: 32
storage:
  dataDirectory: surveys
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", config.Settings.Level())
	}
	if config.Engine.Primary != df.KindRSSTriangulation {
		t.Errorf("Unexpected primary algorithm: %s", config.Engine.Primary)
	}
	if config.Engine.Fallback != df.KindBeamforming {
		t.Errorf("Unexpected fallback algorithm: %s", config.Engine.Fallback)
	}

	// Tunables absent from the file keep their defaults.
	if got := config.Engine.Triangulation.MinAccessPoints; got != 3 {
		t.Errorf("Expected default minAccessPoints 3, got %d", got)
	}
	if got := config.Engine.PathLoss.Model; got != df.ModelFreeSpace {
		t.Errorf("Expected default path loss model, got %s", got)
	}
	if config.Storage.SensorType != defaultSensorType {
		t.Errorf("Expected default sensor type, got %s", config.Storage.SensorType)
	}

	if len(config.AccessPoints) != 1 || config.AccessPoints[0].BSSID != "aa:bb:cc:dd:ee:01" {
		t.Errorf("Unexpected access points: %+v", config.AccessPoints)
	}
	if config.Input.BatchSize != 128 || config.Input.FlushCount != 32 {
		t.Errorf("Unexpected batching: %+v", config.Input)
	}
	if !config.Telemetry.Enabled || config.Telemetry.Latitude != 40.0 {
		t.Errorf("Unexpected telemetry: %+v", config.Telemetry)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing measurements file",
			content: "settings:\n  logLevel: info\n",
			wantErr: "no measurements file",
		},
		{
			name: "invalid engine configuration",
			content: `
engine:
  enabled: [music_aoa]
  primary: rss_triangulation
input:
  measurementsFile: capture.jsonl
`,
			wantErr: "engine configuration",
		},
		{
			name: "invalid batching",
			content: `
input:
  measurementsFile: capture.jsonl
  batchSize: 16
  flushCount: 32
`,
			wantErr: "invalid input batching",
		},
		{
			name:    "malformed yaml",
			content: "engine: [not a mapping",
			wantErr: "parsing configuration",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for a missing file")
	}
}

func TestSettingsLevel(t *testing.T) {
	testCases := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tc := range testCases {
		if got := (Settings{LogLevel: tc.level}).Level(); got != tc.expected {
			t.Errorf("Level(%q) = %v, want %v", tc.level, got, tc.expected)
		}
	}
}
