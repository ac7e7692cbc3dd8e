package df

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default configuration should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "no enabled algorithms",
			mutate:  func(c *Config) { c.Enabled = nil },
			wantErr: "at least one algorithm",
		},
		{
			name:    "primary not enabled",
			mutate:  func(c *Config) { c.Primary = KindMUSIC },
			wantErr: "is not enabled",
		},
		{
			name:    "fallback not enabled",
			mutate:  func(c *Config) { c.Fallback = KindBeamforming },
			wantErr: "is not enabled",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Workers = -1 },
			wantErr: "workers",
		},
		{
			name:    "too few access points",
			mutate:  func(c *Config) { c.Triangulation.MinAccessPoints = 2 },
			wantErr: "at least 3 access points",
		},
		{
			name:    "non-positive max position error",
			mutate:  func(c *Config) { c.Triangulation.MaxPositionError = 0 },
			wantErr: "max position error",
		},
		{
			name:    "confidence threshold out of range",
			mutate:  func(c *Config) { c.Triangulation.ConfidenceThreshold = 1.5 },
			wantErr: "confidence threshold",
		},
		{
			name:    "unknown path loss model",
			mutate:  func(c *Config) { c.PathLoss.Model = "two_ray" },
			wantErr: "unknown path loss model",
		},
		{
			name:    "non-positive frequency",
			mutate:  func(c *Config) { c.PathLoss.Frequency = 0 },
			wantErr: "frequency",
		},
		{
			name:    "non-positive resolution",
			mutate:  func(c *Config) { c.SignalMapping.Resolution = -1 },
			wantErr: "resolution",
		},
		{
			name:    "inverted search range",
			mutate:  func(c *Config) { c.Music.SearchStart, c.Music.SearchEnd = 90, -90 },
			wantErr: "invalid search range",
		},
		{
			name:    "eigenvalue threshold out of range",
			mutate:  func(c *Config) { c.Music.EigenvalueThreshold = 1 },
			wantErr: "eigenvalue threshold",
		},
		{
			name:    "unknown geometry",
			mutate:  func(c *Config) { c.Array.Geometry = "helical" },
			wantErr: "unknown array geometry",
		},
		{
			name:    "single element array",
			mutate:  func(c *Config) { c.Array.NumElements = 1 },
			wantErr: "at least 2 elements",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = -1
	cfg.PathLoss.Frequency = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}
	for _, want := range []string{"workers", "frequency"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Joined error should mention %q, got %q", want, err.Error())
		}
	}
}
