// Package triangulate estimates 2D emitter positions from RSSI readings
// of reference access points with known locations, using weighted least
// squares over path-loss-derived distances.
package triangulate

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/pathloss"
)

const (
	// Rough conversion between degrees of latitude and meters; the
	// solver works in degree space so path loss distances are scaled by
	// this factor before fitting and residuals scaled back after.
	metersPerDegree = 111_320.0

	defaultTxPower = 20.0 // dBm

	// Normalization scales for the geometric spread confidence factor.
	spreadAreaScale     = 1000.0 // m², triangle area for three references
	spreadDistanceScale = 100.0  // m, mean pairwise distance otherwise
)

type accessPoint struct {
	lat, lon float64
	txPower  float64
}

// reference pairs a known access point position with the distance derived
// from one measurement of it.
type reference struct {
	lat, lon    float64
	distanceDeg float64 // path loss distance converted to degrees
}

// WithLogger sets the logger for the triangulator.
func WithLogger(logger *slog.Logger) func(*Triangulator) {
	return func(t *Triangulator) {
		t.logger = logger.With(slog.String("algorithm", string(df.KindRSSTriangulation)))
	}
}

// Triangulator implements RSS triangulation over registered access
// points. Safe for concurrent Process calls; AddAccessPoint and Calibrate
// take the write lock.
type Triangulator struct {
	df.NopLifecycle

	cfg    df.TriangulationConfig
	calc   *pathloss.Calculator
	logger *slog.Logger

	mu  sync.RWMutex
	aps map[string]accessPoint
}

// New creates a Triangulator with the given solver and path loss
// configuration.
func New(cfg df.TriangulationConfig, plCfg df.PathLossConfig, options ...func(*Triangulator)) *Triangulator {
	t := Triangulator{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		aps:    make(map[string]accessPoint),
	}

	for _, option := range options {
		option(&t)
	}

	t.calc = pathloss.New(plCfg, pathloss.WithLogger(t.logger))
	return &t
}

// Kind implements df.Algorithm.
func (t *Triangulator) Kind() df.Kind { return df.KindRSSTriangulation }

// AddAccessPoint registers a known reference emitter. A txPower of zero
// selects the default transmit power.
func (t *Triangulator) AddAccessPoint(bssid string, lat, lon, txPower float64) {
	if txPower == 0 {
		txPower = defaultTxPower
	}

	t.mu.Lock()
	t.aps[bssid] = accessPoint{lat: lat, lon: lon, txPower: txPower}
	t.mu.Unlock()

	t.logger.Debug("registered access point",
		slog.String("bssid", bssid),
		slog.Float64("lat", lat),
		slog.Float64("lon", lon))
}

// Calibrate implements df.Algorithm: it registers reference access points
// and forwards path loss samples to the distance calculator.
func (t *Triangulator) Calibrate(_ context.Context, data df.Calibration) error {
	for _, ap := range data.AccessPoints {
		t.AddAccessPoint(ap.BSSID, ap.Latitude, ap.Longitude, ap.TxPower)
	}

	if len(data.PathLossPoints) > 0 {
		points := make([]pathloss.CalibrationPoint, len(data.PathLossPoints))
		for i, p := range data.PathLossPoints {
			points[i] = pathloss.CalibrationPoint{
				Distance: p.Distance,
				RSSI:     p.RSSI,
				TxPower:  p.TxPower,
			}
		}
		if err := t.calc.Calibrate(points); err != nil {
			return err
		}
	}

	return nil
}

// Process implements df.Algorithm. It returns (nil, nil) when fewer than
// the minimum number of reference access points are observed, when the
// optimizer diverges, or when outlier rejection suppresses a low
// confidence fit.
func (t *Triangulator) Process(_ context.Context, target string, measurements []df.Measurement) (*df.Result, error) {
	refs := t.references(measurements)
	if len(refs) < t.cfg.MinAccessPoints {
		t.logger.Debug("insufficient reference points",
			slog.String("target", target),
			slog.Int("references", len(refs)))
		return nil, nil
	}

	estimate := t.solve(refs)
	if estimate == nil {
		return nil, nil
	}

	return &df.Result{
		TargetBSSID:  target,
		Position:     estimate,
		Measurements: measurements,
		Metadata:     map[string]string{"algorithm": string(df.KindRSSTriangulation)},
	}, nil
}

// EstimatePosition is the quick synchronous helper: it skips result
// wrapping and returns just the fitted position, or nil.
func (t *Triangulator) EstimatePosition(measurements []df.Measurement) *df.PositionEstimate {
	refs := t.references(measurements)
	if len(refs) < t.cfg.MinAccessPoints {
		return nil
	}
	return t.solve(refs)
}

// references converts measurements of known access points into reference
// distance pairs via the path loss model.
func (t *Triangulator) references(measurements []df.Measurement) []reference {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var refs []reference
	for _, m := range measurements {
		ap, ok := t.aps[m.BSSID]
		if !ok {
			continue
		}

		meters := t.calc.Distance(m.SignalStrength, ap.txPower)
		refs = append(refs, reference{
			lat:         ap.lat,
			lon:         ap.lon,
			distanceDeg: meters / metersPerDegree,
		})
	}
	return refs
}

// solve fits the position minimizing the weighted squared distance
// residuals, seeded at the centroid of the reference points.
func (t *Triangulator) solve(refs []reference) *df.PositionEstimate {
	x0 := make([]float64, 2)
	for _, r := range refs {
		x0[0] += r.lat
		x0[1] += r.lon
	}
	floats.Scale(1/float64(len(refs)), x0)

	// Down-weight distant, noisier references.
	weight := func(r reference) float64 {
		if t.cfg.WeightedLeastSquares {
			return 1 / (r.distanceDeg*r.distanceDeg + 1e-6)
		}
		return 1
	}

	objective := func(x []float64) float64 {
		var sum float64
		for _, r := range refs {
			residual := math.Hypot(x[0]-r.lat, x[1]-r.lon) - r.distanceDeg
			sum += weight(r) * residual * residual
		}
		return sum
	}

	// Analytic gradient of the weighted squared residuals. A reference
	// coincident with the candidate position contributes nothing: the
	// distance term is not differentiable there.
	gradient := func(grad, x []float64) {
		grad[0], grad[1] = 0, 0
		for _, r := range refs {
			dLat, dLon := x[0]-r.lat, x[1]-r.lon
			dist := math.Hypot(dLat, dLon)
			if dist == 0 {
				continue
			}
			scale := 2 * weight(r) * (dist - r.distanceDeg) / dist
			grad[0] += scale * dLat
			grad[1] += scale * dLon
		}
	}

	problem := optimize.Problem{Func: objective, Grad: gradient}
	settings := optimize.Settings{
		MajorIterations: t.cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   t.cfg.ConvergenceThreshold,
			Iterations: 5,
		},
	}

	result, err := optimize.Minimize(problem, x0, &settings, &optimize.LBFGS{})
	if err != nil {
		t.logger.Warn("optimizer diverged", slog.String("error", err.Error()))
		return nil
	}
	if math.IsNaN(result.X[0]) || math.IsNaN(result.X[1]) {
		t.logger.Warn("optimizer produced non-finite position")
		return nil
	}

	pos := result.X
	accuracy := t.accuracy(pos, refs)
	confidence := t.confidence(pos, refs)

	if t.cfg.OutlierRejection && confidence < t.cfg.ConfidenceThreshold {
		t.logger.Debug("estimate suppressed by outlier rejection",
			slog.Float64("confidence", confidence))
		return nil
	}

	return &df.PositionEstimate{
		Latitude:   pos[0],
		Longitude:  pos[1],
		Accuracy:   accuracy,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
		Algorithm:  string(df.KindRSSTriangulation),
		Quality:    df.ClassifyPosition(accuracy, confidence),
	}
}

// accuracy is the RMS distance residual converted to meters, capped at
// the configured maximum position error.
func (t *Triangulator) accuracy(pos []float64, refs []reference) float64 {
	var sum float64
	for _, r := range refs {
		residual := math.Hypot(pos[0]-r.lat, pos[1]-r.lon) - r.distanceDeg
		sum += residual * residual
	}
	rms := math.Sqrt(sum/float64(len(refs))) * metersPerDegree
	return math.Min(rms, t.cfg.MaxPositionError)
}

// confidence blends reference count, geometric spread and residual
// consistency into [0, 1]: 40% count, 30% spread, 30% consistency.
func (t *Triangulator) confidence(pos []float64, refs []reference) float64 {
	n := len(refs)

	countFactor := math.Min(float64(n)/5.0, 1.0)

	var spreadFactor float64
	switch {
	case n == 3:
		area := triangleAreaMeters(refs[0], refs[1], refs[2])
		spreadFactor = math.Min(area/spreadAreaScale, 1.0)
	case n > 3:
		var total float64
		var pairs int
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				total += groundDistance(refs[i].lat, refs[i].lon, refs[j].lat, refs[j].lon)
				pairs++
			}
		}
		spreadFactor = math.Min(total/float64(pairs)/spreadDistanceScale, 1.0)
	default:
		spreadFactor = 0.1
	}

	residuals := make([]float64, n)
	distances := make([]float64, n)
	for i, r := range refs {
		fitted := math.Hypot(pos[0]-r.lat, pos[1]-r.lon)
		residuals[i] = (fitted - r.distanceDeg) * metersPerDegree
		distances[i] = r.distanceDeg * metersPerDegree
	}
	meanDistance := stat.Mean(distances, nil)
	consistency := 0.0
	if meanDistance > 0 {
		consistency = 1.0 - math.Min(stat.StdDev(residuals, nil)/meanDistance, 1.0)
	}

	confidence := 0.4*countFactor + 0.3*spreadFactor + 0.3*consistency
	return math.Max(0, math.Min(1, confidence))
}

// triangleAreaMeters computes the area of the triangle formed by three
// reference points, in square meters, on the local tangent plane.
func triangleAreaMeters(a, b, c reference) float64 {
	latRef := (a.lat + b.lat + c.lat) / 3
	cosLat := math.Cos(latRef * math.Pi / 180)

	ax, ay := a.lon*metersPerDegree*cosLat, a.lat*metersPerDegree
	bx, by := b.lon*metersPerDegree*cosLat, b.lat*metersPerDegree
	cx, cy := c.lon*metersPerDegree*cosLat, c.lat*metersPerDegree

	return 0.5 * math.Abs(ax*(by-cy)+bx*(cy-ay)+cx*(ay-by))
}

// groundDistance approximates the distance between two points in meters
// using an equirectangular projection, accurate at triangulation scales.
func groundDistance(lat1, lon1, lat2, lon2 float64) float64 {
	cosLat := math.Cos((lat1 + lat2) / 2 * math.Pi / 180)
	dx := (lon2 - lon1) * metersPerDegree * cosLat
	dy := (lat2 - lat1) * metersPerDegree
	return math.Hypot(dx, dy)
}
