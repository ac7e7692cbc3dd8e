package sigmap

import (
	"math"
	"testing"

	"github.com/rfrecon/wardrive-df/internal/df"
)

func testMappingConfig() df.SignalMappingConfig {
	return df.SignalMappingConfig{
		Resolution:        10.0,
		Interpolation:     df.InterpolationIDW,
		CoverageThreshold: -70.0,
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is roughly 111.2 km everywhere.
	if d := Haversine(40.0, -74.0, 41.0, -74.0); math.Abs(d-111_195) > 100 {
		t.Errorf("One degree of latitude: expected ~111195 m, got %.0f m", d)
	}
	if d := Haversine(40.0, -74.0, 40.0, -74.0); d != 0 {
		t.Errorf("Zero distance expected for identical points, got %f", d)
	}
}

func TestInterpolate(t *testing.T) {
	m := New(testMappingConfig())

	// Roughly a 100 m square around (40, -74).
	m.Add(40.0005, -74.0005, -50)
	m.Add(40.0005, -73.9995, -60)
	m.Add(39.9995, -74.0005, -70)
	m.Add(39.9995, -73.9995, -80)

	t.Run("exact hit returns the sample", func(t *testing.T) {
		got, ok := m.Interpolate(40.0005, -74.0005)
		if !ok {
			t.Fatal("Expected an estimate")
		}
		if got != -50 {
			t.Errorf("Expected exact sample value -50, got %f", got)
		}
	})

	t.Run("interior point stays within sample range", func(t *testing.T) {
		got, ok := m.Interpolate(40.0, -74.0)
		if !ok {
			t.Fatal("Expected an estimate")
		}
		if got < -80 || got > -50 {
			t.Errorf("Interpolated value %f outside sample range [-80, -50]", got)
		}
	})

	t.Run("closer samples dominate", func(t *testing.T) {
		// A point right next to the -50 dBm sample should land near it.
		got, ok := m.Interpolate(40.00049, -74.00049)
		if !ok {
			t.Fatal("Expected an estimate")
		}
		if got > -50 || got < -55 {
			t.Errorf("Expected a value near -50, got %f", got)
		}
	})
}

func TestInterpolateInsufficientSamples(t *testing.T) {
	m := New(testMappingConfig())
	m.Add(40.0, -74.0, -50)
	m.Add(40.001, -74.0, -60)

	if _, ok := m.Interpolate(40.0005, -74.0); ok {
		t.Error("Expected no estimate with fewer than three samples")
	}
}

func TestAddMeasurement(t *testing.T) {
	m := New(testMappingConfig())

	withPos := df.Measurement{
		SignalStrength: -55,
		Position:       &df.Position{Latitude: 40.0, Longitude: -74.0},
	}
	if !m.AddMeasurement(withPos) {
		t.Error("Measurement with a position should be recorded")
	}
	if m.AddMeasurement(df.Measurement{SignalStrength: -55}) {
		t.Error("Measurement without a position should be ignored")
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 recorded sample, got %d", m.Len())
	}
}

func TestGrid(t *testing.T) {
	m := New(testMappingConfig())
	m.Add(40.0005, -74.0005, -50)
	m.Add(40.0005, -73.9995, -60)
	m.Add(39.9995, -74.0005, -70)
	m.Add(39.9995, -73.9995, -80)

	g, err := m.Grid()
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}

	if g.Width < 1 || g.Height < 1 {
		t.Fatalf("Degenerate grid dimensions: %dx%d", g.Width, g.Height)
	}
	if len(g.Values) != g.Width*g.Height {
		t.Fatalf("Values length %d does not match %dx%d", len(g.Values), g.Width, g.Height)
	}
	if g.CellSize != 10.0 {
		t.Errorf("Expected 10 m cells, got %f", g.CellSize)
	}

	// The cell holding a sample must carry an estimate.
	if v := g.At(0, 0); math.IsNaN(v) {
		t.Error("Corner cell next to a sample should not be masked")
	}

	// Every unmasked value stays within the sample range.
	for i, v := range g.Values {
		if math.IsNaN(v) {
			continue
		}
		if v < -80 || v > -50 {
			t.Errorf("Cell %d: value %f outside sample range", i, v)
		}
	}
}

func TestGridMasksDistantCells(t *testing.T) {
	m := New(testMappingConfig())
	// Two tight clusters ~2 km apart leave a masked corridor between them.
	m.Add(40.0000, -74.0000, -50)
	m.Add(40.0001, -74.0001, -55)
	m.Add(40.0180, -74.0180, -60)
	m.Add(40.0181, -74.0181, -65)

	g, err := m.Grid()
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}

	var masked int
	for _, v := range g.Values {
		if math.IsNaN(v) {
			masked++
		}
	}
	if masked == 0 {
		t.Error("Expected masked cells between distant sample clusters")
	}
}

func TestGridErrors(t *testing.T) {
	t.Run("too few samples", func(t *testing.T) {
		m := New(testMappingConfig())
		m.Add(40.0, -74.0, -50)
		if _, err := m.Grid(); err == nil {
			t.Error("Expected error with fewer than three samples")
		}
	})

	t.Run("collinear samples", func(t *testing.T) {
		m := New(testMappingConfig())
		m.Add(40.0000, -74.0, -50)
		m.Add(40.0005, -74.0, -60)
		m.Add(40.0010, -74.0, -70)
		if _, err := m.Grid(); err == nil {
			t.Error("Expected error for samples sharing a longitude")
		}
	})
}

func TestCoverage(t *testing.T) {
	m := New(testMappingConfig())
	// All samples well above the -70 dBm coverage threshold.
	m.Add(40.0005, -74.0005, -50)
	m.Add(40.0005, -73.9995, -52)
	m.Add(39.9995, -74.0005, -54)
	m.Add(39.9995, -73.9995, -56)

	coverage, err := m.Coverage()
	if err != nil {
		t.Fatalf("Coverage failed: %v", err)
	}
	if coverage != 1.0 {
		t.Errorf("Expected full coverage, got %f", coverage)
	}
}
