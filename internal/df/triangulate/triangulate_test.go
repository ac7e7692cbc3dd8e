package triangulate

import (
	"context"
	"math"
	"testing"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/pathloss"
)

func testTriangulationConfig() df.TriangulationConfig {
	return df.TriangulationConfig{
		MinAccessPoints:      3,
		MaxPositionError:     50.0,
		ConvergenceThreshold: 1e-9,
		MaxIterations:        200,
		WeightedLeastSquares: true,
		OutlierRejection:     false,
		ConfidenceThreshold:  0.8,
	}
}

func testPathLossConfig() df.PathLossConfig {
	return df.PathLossConfig{
		Model:             df.ModelFreeSpace,
		Frequency:         2.4e9,
		ReferenceDistance: 1.0,
		PathLossExponent:  2.0,
	}
}

// planarDistance mirrors the solver's isotropic degree metric so synthetic
// RSSI values are consistent with the fitted model.
func planarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat1-lat2, lon1-lon2) * 111_320.0
}

// measurementsAround synthesizes one measurement per access point with the
// RSSI an emitter at (lat, lon) would produce under free space propagation.
func measurementsAround(t *testing.T, tr *Triangulator, lat, lon float64, aps []df.AccessPoint) []df.Measurement {
	t.Helper()

	calc := pathloss.New(testPathLossConfig())
	measurements := make([]df.Measurement, 0, len(aps))
	for _, ap := range aps {
		tr.AddAccessPoint(ap.BSSID, ap.Latitude, ap.Longitude, ap.TxPower)

		d := planarDistance(lat, lon, ap.Latitude, ap.Longitude)
		measurements = append(measurements, df.Measurement{
			BSSID:          ap.BSSID,
			SignalStrength: calc.RSSI(d, ap.TxPower),
		})
	}
	return measurements
}

func TestEstimatePositionRoundTrip(t *testing.T) {
	tr := New(testTriangulationConfig(), testPathLossConfig())

	const trueLat, trueLon = 40.0, -74.0
	aps := []df.AccessPoint{
		{BSSID: "aa:00", Latitude: 40.0031, Longitude: -74.0012, TxPower: 20},
		{BSSID: "aa:01", Latitude: 39.9978, Longitude: -73.9969, TxPower: 20},
		{BSSID: "aa:02", Latitude: 40.0009, Longitude: -74.0041, TxPower: 20},
		{BSSID: "aa:03", Latitude: 39.9962, Longitude: -74.0022, TxPower: 20},
	}
	measurements := measurementsAround(t, tr, trueLat, trueLon, aps)

	estimate := tr.EstimatePosition(measurements)
	if estimate == nil {
		t.Fatal("Expected a position estimate, got nil")
	}

	if err := planarDistance(estimate.Latitude, estimate.Longitude, trueLat, trueLon); err > 5 {
		t.Errorf("Position error %.2f m, expected under 5 m (got %.6f, %.6f)", err, estimate.Latitude, estimate.Longitude)
	}
	if estimate.Accuracy < 0 || estimate.Accuracy > 50 {
		t.Errorf("Accuracy %.2f m outside [0, 50]", estimate.Accuracy)
	}
	if estimate.Confidence < 0 || estimate.Confidence > 1 {
		t.Errorf("Confidence %.2f outside [0, 1]", estimate.Confidence)
	}
	if estimate.Algorithm != string(df.KindRSSTriangulation) {
		t.Errorf("Unexpected algorithm label: %s", estimate.Algorithm)
	}
}

func TestEstimatePositionMinimumReferences(t *testing.T) {
	// Exactly MinAccessPoints references, both weighting modes.
	for _, weighted := range []bool{true, false} {
		cfg := testTriangulationConfig()
		cfg.WeightedLeastSquares = weighted
		tr := New(cfg, testPathLossConfig())

		const trueLat, trueLon = 40.0, -74.0
		aps := []df.AccessPoint{
			{BSSID: "ee:00", Latitude: 40.0031, Longitude: -74.0012, TxPower: 20},
			{BSSID: "ee:01", Latitude: 39.9978, Longitude: -73.9969, TxPower: 20},
			{BSSID: "ee:02", Latitude: 40.0009, Longitude: -74.0041, TxPower: 20},
		}
		measurements := measurementsAround(t, tr, trueLat, trueLon, aps)

		estimate := tr.EstimatePosition(measurements)
		if estimate == nil {
			t.Fatalf("Expected an estimate from 3 references (weighted=%t), got nil", weighted)
		}
		if err := planarDistance(estimate.Latitude, estimate.Longitude, trueLat, trueLon); err > 5 {
			t.Errorf("Position error %.2f m with 3 references (weighted=%t)", err, weighted)
		}
	}
}

func TestProcessInsufficientReferences(t *testing.T) {
	tr := New(testTriangulationConfig(), testPathLossConfig())
	tr.AddAccessPoint("aa:00", 40.0, -74.0, 20)

	measurements := []df.Measurement{
		{BSSID: "aa:00", SignalStrength: -50},
		{BSSID: "unknown", SignalStrength: -60}, // unregistered, ignored
	}

	result, err := tr.Process(context.Background(), "target", measurements)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result with a single reference, got %+v", result)
	}
}

func TestProcessResult(t *testing.T) {
	tr := New(testTriangulationConfig(), testPathLossConfig())

	const trueLat, trueLon = 51.5, -0.12
	aps := []df.AccessPoint{
		{BSSID: "bb:00", Latitude: 51.5027, Longitude: -0.1174, TxPower: 20},
		{BSSID: "bb:01", Latitude: 51.4981, Longitude: -0.1238, TxPower: 20},
		{BSSID: "bb:02", Latitude: 51.5012, Longitude: -0.1163, TxPower: 20},
		{BSSID: "bb:03", Latitude: 51.4969, Longitude: -0.1189, TxPower: 20},
	}
	measurements := measurementsAround(t, tr, trueLat, trueLon, aps)

	result, err := tr.Process(context.Background(), "target", measurements)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result")
	}
	if result.TargetBSSID != "target" {
		t.Errorf("Unexpected target: %s", result.TargetBSSID)
	}
	if result.Position == nil {
		t.Fatal("Result carries no position estimate")
	}
	if len(result.Measurements) != len(measurements) {
		t.Errorf("Result should carry the input measurements, got %d", len(result.Measurements))
	}
}

func TestConfidenceGrowsWithReferences(t *testing.T) {
	confidenceFor := func(aps []df.AccessPoint) float64 {
		tr := New(testTriangulationConfig(), testPathLossConfig())
		measurements := measurementsAround(t, tr, 40.0, -74.0, aps)

		estimate := tr.EstimatePosition(measurements)
		if estimate == nil {
			t.Fatalf("Expected an estimate for %d access points", len(aps))
		}
		return estimate.Confidence
	}

	pool := []df.AccessPoint{
		{BSSID: "cc:00", Latitude: 40.0031, Longitude: -74.0012, TxPower: 20},
		{BSSID: "cc:01", Latitude: 39.9978, Longitude: -73.9969, TxPower: 20},
		{BSSID: "cc:02", Latitude: 40.0009, Longitude: -74.0041, TxPower: 20},
		{BSSID: "cc:03", Latitude: 39.9962, Longitude: -74.0022, TxPower: 20},
		{BSSID: "cc:04", Latitude: 40.0022, Longitude: -73.9975, TxPower: 20},
		{BSSID: "cc:05", Latitude: 40.0044, Longitude: -74.0033, TxPower: 20},
		{BSSID: "cc:06", Latitude: 39.9985, Longitude: -74.0048, TxPower: 20},
		{BSSID: "cc:07", Latitude: 40.0038, Longitude: -73.9961, TxPower: 20},
	}

	prev := 0.0
	for n := 3; n <= len(pool); n++ {
		conf := confidenceFor(pool[:n])
		if n <= 5 && conf <= prev {
			t.Errorf("Confidence must grow up to 5 references: %d APs %.4f, %d APs %.4f",
				n-1, prev, n, conf)
		}
		if conf < prev-1e-3 {
			t.Errorf("Confidence dropped with more references: %d APs %.4f, %d APs %.4f",
				n-1, prev, n, conf)
		}
		prev = conf
	}
}

func TestOutlierRejection(t *testing.T) {
	cfg := testTriangulationConfig()
	cfg.OutlierRejection = true
	// Four perfect references cap confidence at 0.92 (count factor 0.8),
	// so a higher threshold suppresses even a clean fit.
	cfg.ConfidenceThreshold = 0.95

	tr := New(cfg, testPathLossConfig())
	aps := []df.AccessPoint{
		{BSSID: "dd:00", Latitude: 40.0031, Longitude: -74.0012, TxPower: 20},
		{BSSID: "dd:01", Latitude: 39.9978, Longitude: -73.9969, TxPower: 20},
		{BSSID: "dd:02", Latitude: 40.0009, Longitude: -74.0041, TxPower: 20},
		{BSSID: "dd:03", Latitude: 39.9962, Longitude: -74.0022, TxPower: 20},
	}
	measurements := measurementsAround(t, tr, 40.0, -74.0, aps)

	result, err := tr.Process(context.Background(), "target", measurements)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result != nil {
		t.Errorf("Expected rejection below the confidence threshold, got confidence %.3f", result.Position.Confidence)
	}
}

func TestCalibrateRegistersAccessPoints(t *testing.T) {
	tr := New(testTriangulationConfig(), testPathLossConfig())

	err := tr.Calibrate(context.Background(), df.Calibration{
		AccessPoints: []df.AccessPoint{
			{BSSID: "ee:00", Latitude: 40.0031, Longitude: -74.0012, TxPower: 20},
			{BSSID: "ee:01", Latitude: 39.9978, Longitude: -73.9969, TxPower: 20},
			{BSSID: "ee:02", Latitude: 40.0009, Longitude: -74.0041, TxPower: 20},
		},
	})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	calc := pathloss.New(testPathLossConfig())
	measurements := []df.Measurement{
		{BSSID: "ee:00", SignalStrength: calc.RSSI(planarDistance(40.0, -74.0, 40.0031, -74.0012), 20)},
		{BSSID: "ee:01", SignalStrength: calc.RSSI(planarDistance(40.0, -74.0, 39.9978, -73.9969), 20)},
		{BSSID: "ee:02", SignalStrength: calc.RSSI(planarDistance(40.0, -74.0, 40.0009, -74.0041), 20)},
	}

	if estimate := tr.EstimatePosition(measurements); estimate == nil {
		t.Fatal("Expected an estimate after calibration registered the access points")
	}
}
