// Package array provides antenna array signal processing primitives shared
// by the subspace and beamforming estimators: steering vector manifolds,
// sample covariance and Hermitian eigen-decomposition.
package array

import (
	"fmt"
	"math"

	"github.com/rfrecon/wardrive-df/internal/df"
)

const speedOfLight = 299792458.0 // m/s

// Manifold holds the precomputed steering vectors for every candidate
// azimuth in a search range. It is computed once per algorithm instance
// and read concurrently afterwards.
type Manifold struct {
	angles   []float64      // degrees
	steering [][]complex128 // steering[i] is the vector for angles[i]
	elements int
}

// NewManifold precomputes phase-delay steering vectors for the array over
// [startDeg, endDeg) sampled every stepDeg degrees.
func NewManifold(cfg df.ArrayConfig, startDeg, endDeg, stepDeg float64) (*Manifold, error) {
	if stepDeg <= 0 {
		return nil, fmt.Errorf("invalid angular step: %f", stepDeg)
	}
	if startDeg >= endDeg {
		return nil, fmt.Errorf("invalid search range: start=%f, end=%f", startDeg, endDeg)
	}

	positions := ElementPositions(cfg)
	wavelength := speedOfLight / cfg.OperatingFrequency
	k := 2 * math.Pi / wavelength

	n := int(math.Ceil((endDeg - startDeg) / stepDeg))
	m := Manifold{
		angles:   make([]float64, 0, n),
		steering: make([][]complex128, 0, n),
		elements: cfg.NumElements,
	}

	for angle := startDeg; angle < endDeg; angle += stepDeg {
		sin := math.Sin(angle * math.Pi / 180)

		vec := make([]complex128, cfg.NumElements)
		for j, pos := range positions {
			phase := k * pos[0] * sin
			vec[j] = complex(math.Cos(phase), math.Sin(phase))
		}

		m.angles = append(m.angles, angle)
		m.steering = append(m.steering, vec)
	}

	return &m, nil
}

// Len returns the number of candidate angles.
func (m *Manifold) Len() int { return len(m.angles) }

// Elements returns the number of antenna elements per steering vector.
func (m *Manifold) Elements() int { return m.elements }

// Angle returns the i-th candidate azimuth in degrees.
func (m *Manifold) Angle(i int) float64 { return m.angles[i] }

// Steering returns the steering vector for the i-th candidate azimuth.
// The returned slice must not be modified.
func (m *Manifold) Steering(i int) []complex128 { return m.steering[i] }

// Step returns the angular distance between adjacent candidates, in
// degrees.
func (m *Manifold) Step() float64 {
	if len(m.angles) < 2 {
		return 0
	}
	return m.angles[1] - m.angles[0]
}

// ElementPositions lays out the array elements in meters on the local XY
// plane according to the configured geometry. Random layouts use the
// rectangular arrangement; element positions must be deterministic for
// the manifold to be reproducible.
func ElementPositions(cfg df.ArrayConfig) [][2]float64 {
	wavelength := speedOfLight / cfg.OperatingFrequency
	spacing := cfg.ElementSpacing * wavelength

	positions := make([][2]float64, 0, cfg.NumElements)

	switch cfg.Geometry {
	case df.GeometryLinear:
		for i := 0; i < cfg.NumElements; i++ {
			positions = append(positions, [2]float64{float64(i) * spacing, 0})
		}

	case df.GeometryCircular:
		radius := spacing * float64(cfg.NumElements) / (2 * math.Pi)
		for i := 0; i < cfg.NumElements; i++ {
			theta := 2 * math.Pi * float64(i) / float64(cfg.NumElements)
			positions = append(positions, [2]float64{radius * math.Cos(theta), radius * math.Sin(theta)})
		}

	default: // rectangular and random
		rows := int(math.Sqrt(float64(cfg.NumElements)))
		if rows < 1 {
			rows = 1
		}
		cols := cfg.NumElements / rows
		if cols < 1 {
			cols = 1
		}
		for i := 0; i < cfg.NumElements; i++ {
			positions = append(positions, [2]float64{
				float64(i%cols) * spacing,
				float64(i/cols) * spacing,
			})
		}
	}

	return positions
}
