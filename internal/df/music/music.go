// Package music implements the MUSIC (MUltiple SIgnal Classification)
// angle of arrival estimator: the noise subspace of the array covariance
// is scanned against a precomputed steering manifold and pseudo-spectrum
// peaks mark arrival directions.
package music

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/array"
)

// spectrumFloor keeps the pseudo-spectrum finite when a steering vector
// is orthogonal to the entire noise subspace.
const spectrumFloor = 1e-10

// WithLogger sets the logger for the processor.
func WithLogger(logger *slog.Logger) func(*Processor) {
	return func(p *Processor) {
		p.logger = logger.With(slog.String("algorithm", string(df.KindMUSIC)))
	}
}

// Processor runs MUSIC over the IQ rows attached to incoming measurements.
// The steering manifold is precomputed at construction time; Process is
// safe to call concurrently.
type Processor struct {
	df.NopLifecycle

	cfg      df.MUSICConfig
	manifold *array.Manifold
	logger   *slog.Logger
}

// New creates a Processor for the given search and array configuration.
func New(cfg df.MUSICConfig, arrayCfg df.ArrayConfig, options ...func(*Processor)) (*Processor, error) {
	manifold, err := array.NewManifold(arrayCfg, cfg.SearchStart, cfg.SearchEnd, cfg.AngularResolution)
	if err != nil {
		return nil, err
	}

	p := Processor{
		cfg:      cfg,
		manifold: manifold,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p, nil
}

// Kind implements df.Algorithm.
func (p *Processor) Kind() df.Kind { return df.KindMUSIC }

// Process implements df.Algorithm. It returns (nil, nil) when the
// measurements carry too few IQ rows for the array, or when no source is
// detected above the eigenvalue threshold.
func (p *Processor) Process(_ context.Context, target string, measurements []df.Measurement) (*df.Result, error) {
	estimate, err := p.estimate(measurements)
	if err != nil {
		return nil, err
	}
	if estimate == nil {
		return nil, nil
	}

	return &df.Result{
		TargetBSSID:  target,
		Angle:        estimate,
		Measurements: measurements,
		Metadata:     map[string]string{"algorithm": string(df.KindMUSIC)},
	}, nil
}

// EstimateAngle is the synchronous helper returning just the angle
// estimate, or nil when none can be produced.
func (p *Processor) EstimateAngle(measurements []df.Measurement) *df.AngleEstimate {
	estimate, err := p.estimate(measurements)
	if err != nil {
		p.logger.Warn("angle estimation failed", slog.String("error", err.Error()))
		return nil
	}
	return estimate
}

func (p *Processor) estimate(measurements []df.Measurement) (*df.AngleEstimate, error) {
	rows := df.StackIQ(measurements, p.manifold.Elements())
	if rows == nil {
		p.logger.Debug("insufficient IQ rows for array",
			slog.Int("elements", p.manifold.Elements()))
		return nil, nil
	}

	cov := array.Covariance(rows)
	values, vectors, err := array.EigenHermitian(cov)
	if err != nil {
		return nil, err
	}

	sources := p.countSources(values)
	if sources == 0 {
		p.logger.Debug("no sources above eigenvalue threshold")
		return nil, nil
	}

	// The real-embedded decomposition lists every eigenvector twice, so
	// the signal subspace occupies the first 2*sources entries.
	noise := vectors[2*sources:]
	spectrum := p.pseudoSpectrum(noise)

	peak := maxIndex(spectrum)
	if !isLocalMaximum(spectrum, peak) {
		p.logger.Debug("pseudo-spectrum peak sits on the search boundary")
	}

	accuracy := p.halfMaxWidth(spectrum, peak)
	confidence := p.confidence(spectrum, peak)

	azimuth := math.Mod(p.manifold.Angle(peak), 360)
	if azimuth < 0 {
		azimuth += 360
	}

	return &df.AngleEstimate{
		Azimuth:    azimuth,
		Accuracy:   accuracy,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
		Algorithm:  string(df.KindMUSIC),
		Quality:    df.ClassifyAngle(accuracy, confidence),
	}, nil
}

// countSources estimates the number of impinging signals from the
// eigenvalue profile: eigenvalues above threshold times the largest one
// belong to the signal subspace. The real embedding duplicates every
// eigenvalue, hence the halving. At least one noise dimension is always
// kept.
func (p *Processor) countSources(values []float64) int {
	if len(values) == 0 || values[0] <= 0 {
		return 0
	}

	cutoff := p.cfg.EigenvalueThreshold * values[0]
	var above int
	for _, v := range values {
		if v > cutoff {
			above++
		}
	}

	sources := above / 2
	if max := p.manifold.Elements() - 1; sources > max {
		sources = max
	}
	return sources
}

// pseudoSpectrum evaluates 1 / ||E_nᴴ a(θ)||² over the manifold.
func (p *Processor) pseudoSpectrum(noise [][]complex128) []float64 {
	spectrum := make([]float64, p.manifold.Len())
	for i := range spectrum {
		spectrum[i] = 1 / (array.Projection(noise, p.manifold.Steering(i)) + spectrumFloor)
	}
	return spectrum
}

// halfMaxWidth measures the peak width at half its height, in degrees,
// floored at the angular resolution.
func (p *Processor) halfMaxWidth(spectrum []float64, peak int) float64 {
	half := spectrum[peak] / 2

	left := peak
	for left > 0 && spectrum[left-1] >= half {
		left--
	}
	right := peak
	for right < len(spectrum)-1 && spectrum[right+1] >= half {
		right++
	}

	width := float64(right-left) * p.manifold.Step()
	return math.Max(width, p.cfg.AngularResolution)
}

// confidence maps the peak-to-mean ratio of the pseudo-spectrum into
// [0, 1]; a ratio of ten or more saturates at full confidence.
func (p *Processor) confidence(spectrum []float64, peak int) float64 {
	var mean float64
	for _, v := range spectrum {
		mean += v
	}
	mean /= float64(len(spectrum))
	if mean <= 0 {
		return 0
	}
	return math.Min(spectrum[peak]/mean/10, 1)
}

func maxIndex(s []float64) int {
	idx := 0
	for i, v := range s {
		if v > s[idx] {
			idx = i
		}
	}
	return idx
}

func isLocalMaximum(s []float64, i int) bool {
	if i > 0 && s[i-1] > s[i] {
		return false
	}
	if i < len(s)-1 && s[i+1] > s[i] {
		return false
	}
	return i > 0 && i < len(s)-1
}
