package music

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/array"
)

const testSnapshots = 256

func testMUSICConfig() df.MUSICConfig {
	// A linear array cannot tell front from back, so the search is
	// restricted to the forward half plane.
	return df.MUSICConfig{
		AngularResolution:   1.0,
		SearchStart:         -90,
		SearchEnd:           90,
		EigenvalueThreshold: 0.01,
	}
}

func testArrayConfig() df.ArrayConfig {
	return df.ArrayConfig{
		Geometry:           df.GeometryLinear,
		NumElements:        4,
		ElementSpacing:     0.5,
		OperatingFrequency: 2.4e9,
	}
}

// simulateArrival synthesizes per-element IQ captures for a single plane
// wave arriving at the given azimuth, with a little measurement noise for
// covariance conditioning.
func simulateArrival(arrayCfg df.ArrayConfig, azimuthDeg float64) []df.Measurement {
	positions := array.ElementPositions(arrayCfg)
	wavelength := 299792458.0 / arrayCfg.OperatingFrequency
	k := 2 * math.Pi / wavelength
	sin := math.Sin(azimuthDeg * math.Pi / 180)

	rng := rand.New(rand.NewSource(42))

	measurements := make([]df.Measurement, arrayCfg.NumElements)
	for j := range measurements {
		phase := k * positions[j][0] * sin
		steering := complex(math.Cos(phase), math.Sin(phase))

		iq := make(df.IQ, testSnapshots)
		for t := 0; t < testSnapshots; t++ {
			// Narrowband source with a zero-mean envelope.
			s := complex(math.Cos(0.7*float64(t)), math.Sin(0.7*float64(t)))
			v := steering * s
			iq[t] = [2]float64{
				real(v) + 0.01*rng.NormFloat64(),
				imag(v) + 0.01*rng.NormFloat64(),
			}
		}
		measurements[j] = df.Measurement{BSSID: "target", IQ: iq}
	}
	return measurements
}

func TestEstimateAngleSingleSource(t *testing.T) {
	p, err := New(testMUSICConfig(), testArrayConfig())
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}

	testCases := []struct {
		name    string
		arrival float64
		azimuth float64 // after normalization to [0, 360)
	}{
		{"broadside", 0, 0},
		{"positive", 20, 20},
		{"negative wraps", -30, 330},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			measurements := simulateArrival(testArrayConfig(), tc.arrival)

			estimate := p.EstimateAngle(measurements)
			if estimate == nil {
				t.Fatal("Expected an angle estimate, got nil")
			}

			diff := math.Abs(math.Mod(estimate.Azimuth-tc.azimuth+540, 360) - 180)
			if diff > 2 {
				t.Errorf("Azimuth %.1f°, expected %.1f° ±2°", estimate.Azimuth, tc.azimuth)
			}
			if estimate.Confidence <= 0 || estimate.Confidence > 1 {
				t.Errorf("Confidence %.3f outside (0, 1]", estimate.Confidence)
			}
			if estimate.Accuracy < 1.0 {
				t.Errorf("Accuracy %.2f° below the angular resolution floor", estimate.Accuracy)
			}
			if estimate.Algorithm != string(df.KindMUSIC) {
				t.Errorf("Unexpected algorithm label: %s", estimate.Algorithm)
			}
		})
	}
}

func TestProcessInsufficientIQ(t *testing.T) {
	p, err := New(testMUSICConfig(), testArrayConfig())
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}

	// Two IQ rows cannot feed a four element array.
	measurements := simulateArrival(testArrayConfig(), 10)[:2]

	result, err := p.Process(context.Background(), "target", measurements)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result for insufficient IQ rows, got %+v", result)
	}
}

func TestProcessResult(t *testing.T) {
	p, err := New(testMUSICConfig(), testArrayConfig())
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}

	measurements := simulateArrival(testArrayConfig(), 15)
	result, err := p.Process(context.Background(), "target", measurements)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result")
	}
	if result.TargetBSSID != "target" {
		t.Errorf("Unexpected target: %s", result.TargetBSSID)
	}
	if result.Angle == nil {
		t.Fatal("Result carries no angle estimate")
	}
}

func TestNewInvalidSearchRange(t *testing.T) {
	cfg := testMUSICConfig()
	cfg.SearchStart, cfg.SearchEnd = 90, -90

	if _, err := New(cfg, testArrayConfig()); err == nil {
		t.Error("Expected error for inverted search range")
	}
}

func TestCountSources(t *testing.T) {
	p, err := New(testMUSICConfig(), testArrayConfig())
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}

	testCases := []struct {
		name     string
		values   []float64 // duplicated pairs, descending
		expected int
	}{
		{"single source", []float64{10, 10, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01}, 1},
		{"two sources", []float64{10, 10, 5, 5, 0.01, 0.01, 0.01, 0.01}, 2},
		{"no signal", []float64{0, 0, 0, 0, 0, 0, 0, 0}, 0},
		{"clamped to elements minus one", []float64{10, 10, 9, 9, 8, 8, 7, 7}, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.countSources(tc.values); got != tc.expected {
				t.Errorf("countSources(%v) = %d, want %d", tc.values, got, tc.expected)
			}
		})
	}
}
