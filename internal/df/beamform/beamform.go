// Package beamform implements a conventional (Bartlett) beam scanning
// angle of arrival estimator. Unlike MUSIC it needs no source count and
// degrades gracefully at low SNR, which makes it the usual fallback for
// subspace methods.
package beamform

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/cmplx"
	"time"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/array"
)

// WithLogger sets the logger for the scanner.
func WithLogger(logger *slog.Logger) func(*Scanner) {
	return func(s *Scanner) {
		s.logger = logger.With(slog.String("algorithm", string(df.KindBeamforming)))
	}
}

// Scanner sweeps the steering manifold against the sample covariance and
// reports the azimuth with the highest output power. Safe for concurrent
// Process calls.
type Scanner struct {
	df.NopLifecycle

	cfg      df.MUSICConfig // shares the search range and resolution knobs
	manifold *array.Manifold
	logger   *slog.Logger
}

// New creates a Scanner for the given search and array configuration.
func New(cfg df.MUSICConfig, arrayCfg df.ArrayConfig, options ...func(*Scanner)) (*Scanner, error) {
	manifold, err := array.NewManifold(arrayCfg, cfg.SearchStart, cfg.SearchEnd, cfg.AngularResolution)
	if err != nil {
		return nil, err
	}

	s := Scanner{
		cfg:      cfg,
		manifold: manifold,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Kind implements df.Algorithm.
func (s *Scanner) Kind() df.Kind { return df.KindBeamforming }

// Process implements df.Algorithm. It returns (nil, nil) when the
// measurements carry too few IQ rows for the array.
func (s *Scanner) Process(_ context.Context, target string, measurements []df.Measurement) (*df.Result, error) {
	estimate := s.EstimateAngle(measurements)
	if estimate == nil {
		return nil, nil
	}

	return &df.Result{
		TargetBSSID:  target,
		Angle:        estimate,
		Measurements: measurements,
		Metadata:     map[string]string{"algorithm": string(df.KindBeamforming)},
	}, nil
}

// EstimateAngle scans the manifold and returns the strongest beam, or nil
// when no estimate can be produced.
func (s *Scanner) EstimateAngle(measurements []df.Measurement) *df.AngleEstimate {
	rows := df.StackIQ(measurements, s.manifold.Elements())
	if rows == nil {
		s.logger.Debug("insufficient IQ rows for array",
			slog.Int("elements", s.manifold.Elements()))
		return nil
	}

	cov := array.Covariance(rows)
	power := s.scan(cov)

	peak := 0
	for i, v := range power {
		if v > power[peak] {
			peak = i
		}
	}
	if power[peak] <= 0 {
		s.logger.Debug("beam scan produced no positive power")
		return nil
	}

	accuracy := s.halfMaxWidth(power, peak)
	confidence := s.confidence(power, peak)

	azimuth := math.Mod(s.manifold.Angle(peak), 360)
	if azimuth < 0 {
		azimuth += 360
	}

	return &df.AngleEstimate{
		Azimuth:    azimuth,
		Accuracy:   accuracy,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
		Algorithm:  string(df.KindBeamforming),
		Quality:    df.ClassifyAngle(accuracy, confidence),
	}
}

// scan evaluates the Bartlett beam power P(θ) = a(θ)ᴴ R a(θ) for every
// candidate azimuth. R is Hermitian so the quadratic form is real.
func (s *Scanner) scan(cov [][]complex128) []float64 {
	n := len(cov)
	power := make([]float64, s.manifold.Len())

	for idx := range power {
		a := s.manifold.Steering(idx)

		var total complex128
		for i := 0; i < n; i++ {
			var row complex128
			for j := 0; j < n; j++ {
				row += cov[i][j] * a[j]
			}
			total += cmplx.Conj(a[i]) * row
		}
		power[idx] = real(total)
	}

	return power
}

// halfMaxWidth measures the main lobe width at half its height, in
// degrees, floored at the angular resolution.
func (s *Scanner) halfMaxWidth(power []float64, peak int) float64 {
	half := power[peak] / 2

	left := peak
	for left > 0 && power[left-1] >= half {
		left--
	}
	right := peak
	for right < len(power)-1 && power[right+1] >= half {
		right++
	}

	width := float64(right-left) * s.manifold.Step()
	return math.Max(width, s.cfg.AngularResolution)
}

// confidence maps the peak-to-mean power ratio into [0, 1]. Conventional
// beams are broad, so the ratio saturates earlier than the MUSIC
// pseudo-spectrum: a ratio of four scores full confidence.
func (s *Scanner) confidence(power []float64, peak int) float64 {
	var mean float64
	for _, v := range power {
		mean += v
	}
	mean /= float64(len(power))
	if mean <= 0 {
		return 0
	}
	return math.Min(power[peak]/mean/4, 1)
}
