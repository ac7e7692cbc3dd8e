package pathloss

import (
	"math"
	"testing"

	"github.com/rfrecon/wardrive-df/internal/df"
)

func testConfig(model df.PathLossModel) df.PathLossConfig {
	return df.PathLossConfig{
		Model:               model,
		Frequency:           2.4e9,
		ReferenceDistance:   1.0,
		PathLossExponent:    2.0,
		WallPenetrationLoss: 10.0,
	}
}

func TestFreeSpaceKnownValue(t *testing.T) {
	c := New(testConfig(df.ModelFreeSpace))

	// Free space path loss at 2.4 GHz over one meter is 40.05 dB.
	rssi := c.RSSI(1.0, 20.0)
	if got := 20.0 - rssi; math.Abs(got-40.05) > 0.1 {
		t.Errorf("Expected ~40.05 dB loss at 1 m, got %.2f dB", got)
	}
}

func TestDistanceRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		model     df.PathLossModel
		distance  float64
		tolerance float64
	}{
		{"free space short", df.ModelFreeSpace, 50, 1e-6},
		{"free space long", df.ModelFreeSpace, 2000, 1e-4},
		{"indoor", df.ModelIndoor, 30, 1e-6},
		{"hata", df.ModelHata, 1500, 0.5},
		{"dense urban", df.ModelDenseUrban, 1000, 0.5},
		{"rural", df.ModelRural, 5000, 0.5},
	}

	const txPower = 20.0

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(testConfig(tc.model))

			rssi := c.RSSI(tc.distance, txPower)
			got := c.Distance(rssi, txPower)

			if math.Abs(got-tc.distance) > tc.tolerance {
				t.Errorf("Round trip at %.1f m returned %.3f m (tolerance %.4f)", tc.distance, got, tc.tolerance)
			}
		})
	}
}

func TestDistanceClampsToReference(t *testing.T) {
	c := New(testConfig(df.ModelFreeSpace))

	// An implausibly strong signal must not yield a sub-reference distance.
	if got := c.Distance(10.0, 20.0); got < 1.0 {
		t.Errorf("Distance should clamp to the reference distance, got %.4f m", got)
	}
}

func TestCalibrate(t *testing.T) {
	c := New(testConfig(df.ModelIndoor))

	// Synthesize observations following loss = 40 + 10*3.0*log10(d).
	const txPower = 20.0
	points := make([]CalibrationPoint, 0, 4)
	for _, d := range []float64{1, 5, 20, 100} {
		loss := 40 + 30*math.Log10(d)
		points = append(points, CalibrationPoint{
			Distance: d,
			RSSI:     txPower - loss,
			TxPower:  txPower,
		})
	}

	if err := c.Calibrate(points); err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if got := c.Exponent(); math.Abs(got-3.0) > 1e-6 {
		t.Errorf("Expected fitted exponent 3.0, got %f", got)
	}
}

func TestCalibrateErrors(t *testing.T) {
	c := New(testConfig(df.ModelIndoor))

	if err := c.Calibrate([]CalibrationPoint{{Distance: 10, RSSI: -60, TxPower: 20}}); err == nil {
		t.Error("Expected error for a single calibration point")
	}

	points := []CalibrationPoint{
		{Distance: -1, RSSI: -60, TxPower: 20},
		{Distance: 10, RSSI: -70, TxPower: 20},
	}
	if err := c.Calibrate(points); err == nil {
		t.Error("Expected error for a non-positive calibration distance")
	}

	// Failed calibration must leave the configured exponent intact.
	if got := c.Exponent(); got != 2.0 {
		t.Errorf("Exponent changed after failed calibration: %f", got)
	}
}
