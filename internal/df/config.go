package df

import (
	"errors"
	"fmt"
	"slices"
)

// PathLossModel selects the propagation model used to invert RSSI into
// distance.
type PathLossModel string

const (
	ModelFreeSpace  PathLossModel = "free_space"
	ModelHata       PathLossModel = "hata"
	ModelIndoor     PathLossModel = "indoor"
	ModelDenseUrban PathLossModel = "dense_urban"
	ModelRural      PathLossModel = "rural"
)

// ArrayGeometry describes the physical layout of the antenna array.
type ArrayGeometry string

const (
	GeometryLinear      ArrayGeometry = "linear"
	GeometryCircular    ArrayGeometry = "circular"
	GeometryRectangular ArrayGeometry = "rectangular"
	GeometryRandom      ArrayGeometry = "random"
)

// InterpolationMethod selects how the signal mapper fills gaps between
// measured points.
type InterpolationMethod string

const (
	InterpolationIDW     InterpolationMethod = "idw"
	InterpolationKriging InterpolationMethod = "kriging"
	InterpolationSpline  InterpolationMethod = "spline"
)

// TriangulationConfig tunes the RSS triangulation solver.
type TriangulationConfig struct {
	MinAccessPoints      int     `yaml:"minAccessPoints"`
	MaxPositionError     float64 `yaml:"maxPositionError"` // meters
	ConvergenceThreshold float64 `yaml:"convergenceThreshold"`
	MaxIterations        int     `yaml:"maxIterations"`
	WeightedLeastSquares bool    `yaml:"weightedLeastSquares"`
	OutlierRejection     bool    `yaml:"outlierRejection"`
	ConfidenceThreshold  float64 `yaml:"confidenceThreshold"`
}

// PathLossConfig tunes RSSI to distance conversion.
type PathLossConfig struct {
	Model               PathLossModel `yaml:"model"`
	Frequency           float64       `yaml:"frequency"`           // Hz
	ReferenceDistance   float64       `yaml:"referenceDistance"`   // meters
	PathLossExponent    float64       `yaml:"pathLossExponent"`    //
	WallPenetrationLoss float64       `yaml:"wallPenetrationLoss"` // dB, indoor model
}

// SignalMappingConfig tunes spatial signal strength interpolation.
type SignalMappingConfig struct {
	Resolution        float64             `yaml:"resolution"` // meters per grid cell
	Interpolation     InterpolationMethod `yaml:"interpolation"`
	CoverageThreshold float64             `yaml:"coverageThreshold"` // dBm
}

// MUSICConfig tunes the MUSIC angle of arrival estimator.
type MUSICConfig struct {
	AngularResolution   float64 `yaml:"angularResolution"` // degrees
	SearchStart         float64 `yaml:"searchStart"`       // degrees
	SearchEnd           float64 `yaml:"searchEnd"`         // degrees
	EigenvalueThreshold float64 `yaml:"eigenvalueThreshold"`
}

// ArrayConfig describes the receiving antenna array.
type ArrayConfig struct {
	Geometry           ArrayGeometry `yaml:"geometry"`
	NumElements        int           `yaml:"numElements"`
	ElementSpacing     float64       `yaml:"elementSpacing"`     // wavelengths
	OperatingFrequency float64       `yaml:"operatingFrequency"` // Hz
}

// Config is the validated, immutable-per-run configuration tree consumed
// by the engine and every algorithm it hosts. Reconfiguration builds new
// algorithm instances from a new Config rather than mutating a live one.
type Config struct {
	Enabled  []Kind `yaml:"enabled"`
	Primary  Kind   `yaml:"primary"`
	Fallback Kind   `yaml:"fallback"` // empty means no fallback
	Workers  int    `yaml:"workers"`  // 0 means one worker per CPU

	Triangulation TriangulationConfig `yaml:"triangulation"`
	PathLoss      PathLossConfig      `yaml:"pathLoss"`
	SignalMapping SignalMappingConfig `yaml:"signalMapping"`
	Music         MUSICConfig         `yaml:"music"`
	Array         ArrayConfig         `yaml:"array"`
}

// DefaultConfig returns the configuration tree with every tunable at its
// default value and RSS triangulation as the only enabled algorithm.
func DefaultConfig() Config {
	return Config{
		Enabled: []Kind{KindRSSTriangulation},
		Primary: KindRSSTriangulation,
		Triangulation: TriangulationConfig{
			MinAccessPoints:      3,
			MaxPositionError:     50.0,
			ConvergenceThreshold: 0.01,
			MaxIterations:        100,
			WeightedLeastSquares: true,
			OutlierRejection:     true,
			ConfidenceThreshold:  0.8,
		},
		PathLoss: PathLossConfig{
			Model:               ModelFreeSpace,
			Frequency:           2.4e9,
			ReferenceDistance:   1.0,
			PathLossExponent:    2.0,
			WallPenetrationLoss: 10.0,
		},
		SignalMapping: SignalMappingConfig{
			Resolution:        10.0,
			Interpolation:     InterpolationIDW,
			CoverageThreshold: -70.0,
		},
		Music: MUSICConfig{
			AngularResolution:   1.0,
			SearchStart:         -180,
			SearchEnd:           180,
			EigenvalueThreshold: 0.01,
		},
		Array: ArrayConfig{
			Geometry:           GeometryLinear,
			NumElements:        4,
			ElementSpacing:     0.5,
			OperatingFrequency: 2.4e9,
		},
	}
}

var validModels = map[PathLossModel]struct{}{
	ModelFreeSpace:  {},
	ModelHata:       {},
	ModelIndoor:     {},
	ModelDenseUrban: {},
	ModelRural:      {},
}

var validGeometries = map[ArrayGeometry]struct{}{
	GeometryLinear:      {},
	GeometryCircular:    {},
	GeometryRectangular: {},
	GeometryRandom:      {},
}

// Validate checks the whole configuration tree and reports every problem
// found. A non-nil error is fatal to startup; invalid values are never
// silently defaulted.
func (c Config) Validate() error {
	var errs []error

	if len(c.Enabled) == 0 {
		errs = append(errs, errors.New("at least one algorithm must be enabled"))
	}
	if !slices.Contains(c.Enabled, c.Primary) {
		errs = append(errs, fmt.Errorf("primary algorithm %q is not enabled", c.Primary))
	}
	if c.Fallback != "" && !slices.Contains(c.Enabled, c.Fallback) {
		errs = append(errs, fmt.Errorf("fallback algorithm %q is not enabled", c.Fallback))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}

	if c.Triangulation.MinAccessPoints < 3 {
		errs = append(errs, errors.New("triangulation requires at least 3 access points"))
	}
	if c.Triangulation.MaxPositionError <= 0 {
		errs = append(errs, errors.New("max position error must be positive"))
	}
	if c.Triangulation.MaxIterations <= 0 {
		errs = append(errs, errors.New("max iterations must be positive"))
	}
	if c.Triangulation.ConfidenceThreshold < 0 || c.Triangulation.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("confidence threshold must be within [0, 1]"))
	}

	if _, ok := validModels[c.PathLoss.Model]; !ok {
		errs = append(errs, fmt.Errorf("unknown path loss model %q", c.PathLoss.Model))
	}
	if c.PathLoss.Frequency <= 0 {
		errs = append(errs, errors.New("path loss frequency must be positive"))
	}
	if c.PathLoss.ReferenceDistance <= 0 {
		errs = append(errs, errors.New("reference distance must be positive"))
	}
	if c.PathLoss.PathLossExponent <= 0 {
		errs = append(errs, errors.New("path loss exponent must be positive"))
	}

	if c.SignalMapping.Resolution <= 0 {
		errs = append(errs, errors.New("signal mapping resolution must be positive"))
	}

	if c.Music.AngularResolution <= 0 {
		errs = append(errs, errors.New("angular resolution must be positive"))
	}
	if c.Music.SearchStart >= c.Music.SearchEnd {
		errs = append(errs, fmt.Errorf("invalid search range: start=%0.1f, end=%0.1f", c.Music.SearchStart, c.Music.SearchEnd))
	}
	if c.Music.EigenvalueThreshold <= 0 || c.Music.EigenvalueThreshold >= 1 {
		errs = append(errs, errors.New("eigenvalue threshold must be within (0, 1)"))
	}

	if _, ok := validGeometries[c.Array.Geometry]; !ok {
		errs = append(errs, fmt.Errorf("unknown array geometry %q", c.Array.Geometry))
	}
	if c.Array.NumElements < 2 {
		errs = append(errs, errors.New("antenna array must have at least 2 elements"))
	}
	if c.Array.ElementSpacing <= 0 {
		errs = append(errs, errors.New("element spacing must be positive"))
	}
	if c.Array.OperatingFrequency <= 0 {
		errs = append(errs, errors.New("operating frequency must be positive"))
	}

	return errors.Join(errs...)
}
