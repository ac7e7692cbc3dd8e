// Package sigmap builds spatial signal strength maps from georeferenced
// RSSI samples: point interpolation for ad-hoc queries and rasterized
// grids for coverage rendering.
package sigmap

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/rfrecon/wardrive-df/internal/df"
)

const (
	earthRadius     = 6_371_000.0 // meters
	metersPerDegree = 111_320.0

	// Grid cells further than this many cell widths from the nearest
	// sample are masked out rather than extrapolated.
	maskRangeCells = 5.0

	// Exact-hit shortcut for inverse distance weighting.
	idwEpsilon = 1e-3 // meters
)

// Sample is one georeferenced signal strength observation.
type Sample struct {
	Latitude  float64
	Longitude float64
	RSSI      float64 // dBm
}

// WithLogger sets the logger for the mapper.
func WithLogger(logger *slog.Logger) func(*Mapper) {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// Mapper accumulates samples and interpolates signal strength between
// them. Safe for concurrent use.
type Mapper struct {
	cfg    df.SignalMappingConfig
	logger *slog.Logger

	mu      sync.RWMutex
	samples []Sample
}

// New creates a Mapper. Kriging and spline interpolation are accepted in
// configuration but currently evaluate with inverse distance weighting.
func New(cfg df.SignalMappingConfig, options ...func(*Mapper)) *Mapper {
	m := Mapper{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&m)
	}

	if cfg.Interpolation != df.InterpolationIDW {
		m.logger.Info("interpolation method falls back to inverse distance weighting",
			slog.String("configured", string(cfg.Interpolation)))
	}

	return &m
}

// Add records one sample.
func (m *Mapper) Add(lat, lon, rssi float64) {
	m.mu.Lock()
	m.samples = append(m.samples, Sample{Latitude: lat, Longitude: lon, RSSI: rssi})
	m.mu.Unlock()
}

// AddMeasurement records the measurement's signal strength at its capture
// position. Measurements without a position are ignored and reported
// false.
func (m *Mapper) AddMeasurement(meas df.Measurement) bool {
	if meas.Position == nil {
		return false
	}
	m.Add(meas.Position.Latitude, meas.Position.Longitude, meas.SignalStrength)
	return true
}

// Len returns the number of recorded samples.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}

// Interpolate estimates the signal strength at a point. It reports false
// when fewer than three samples are recorded. A query landing on a sample
// returns that sample's value exactly.
func (m *Mapper) Interpolate(lat, lon float64) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) < 3 {
		return 0, false
	}
	return m.idw(lat, lon), true
}

// idw is inverse distance weighting with 1/d² weights. Caller holds the
// read lock.
func (m *Mapper) idw(lat, lon float64) float64 {
	var num, den float64
	for _, s := range m.samples {
		d := Haversine(lat, lon, s.Latitude, s.Longitude)
		if d < idwEpsilon {
			return s.RSSI
		}
		w := 1 / (d * d)
		num += w * s.RSSI
		den += w
	}
	return num / den
}

// nearest returns the distance in meters to the closest sample. Caller
// holds the read lock.
func (m *Mapper) nearest(lat, lon float64) float64 {
	best := math.Inf(1)
	for _, s := range m.samples {
		if d := Haversine(lat, lon, s.Latitude, s.Longitude); d < best {
			best = d
		}
	}
	return best
}

// Grid is a rasterized signal strength map. Cells without nearby samples
// hold NaN.
type Grid struct {
	Width, Height int
	MinLat        float64
	MinLon        float64
	MaxLat        float64
	MaxLon        float64
	CellSize      float64 // meters
	Values        []float64
}

// At returns the cell value at grid coordinates (x, y); y grows northward.
func (g *Grid) At(x, y int) float64 {
	return g.Values[y*g.Width+x]
}

// CellCenter returns the geographic coordinates of the cell center.
func (g *Grid) CellCenter(x, y int) (lat, lon float64) {
	latStep := (g.MaxLat - g.MinLat) / float64(g.Height)
	lonStep := (g.MaxLon - g.MinLon) / float64(g.Width)
	return g.MinLat + (float64(y)+0.5)*latStep, g.MinLon + (float64(x)+0.5)*lonStep
}

// Grid rasterizes the sample cloud at the configured resolution. Cells
// further than a few cell widths from any sample are masked with NaN.
// At least three samples spanning a non-degenerate bounding box are
// required.
func (m *Mapper) Grid() (*Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) < 3 {
		return nil, errors.New("grid requires at least three samples")
	}

	minLat, minLon := math.Inf(1), math.Inf(1)
	maxLat, maxLon := math.Inf(-1), math.Inf(-1)
	for _, s := range m.samples {
		minLat = math.Min(minLat, s.Latitude)
		maxLat = math.Max(maxLat, s.Latitude)
		minLon = math.Min(minLon, s.Longitude)
		maxLon = math.Max(maxLon, s.Longitude)
	}
	if minLat == maxLat || minLon == maxLon {
		return nil, errors.New("samples are collinear, cannot rasterize")
	}

	cosLat := math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	widthMeters := (maxLon - minLon) * metersPerDegree * cosLat
	heightMeters := (maxLat - minLat) * metersPerDegree

	width := int(math.Ceil(widthMeters / m.cfg.Resolution))
	height := int(math.Ceil(heightMeters / m.cfg.Resolution))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	g := Grid{
		Width:    width,
		Height:   height,
		MinLat:   minLat,
		MinLon:   minLon,
		MaxLat:   maxLat,
		MaxLon:   maxLon,
		CellSize: m.cfg.Resolution,
		Values:   make([]float64, width*height),
	}

	maskRange := maskRangeCells * m.cfg.Resolution
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			lat, lon := g.CellCenter(x, y)
			if m.nearest(lat, lon) > maskRange {
				g.Values[y*width+x] = math.NaN()
				continue
			}
			g.Values[y*width+x] = m.idw(lat, lon)
		}
	}

	return &g, nil
}

// Coverage reports the fraction of unmasked grid cells whose interpolated
// signal strength clears the configured coverage threshold.
func (m *Mapper) Coverage() (float64, error) {
	g, err := m.Grid()
	if err != nil {
		return 0, err
	}

	var valid, covered int
	for _, v := range g.Values {
		if math.IsNaN(v) {
			continue
		}
		valid++
		if v >= m.cfg.CoverageThreshold {
			covered++
		}
	}
	if valid == 0 {
		return 0, nil
	}
	return float64(covered) / float64(valid), nil
}

// Haversine returns the great circle distance between two points in
// meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
