package app

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultMinSignal = -100.0 // dBm
	defaultMaxSignal = -30.0  // dBm

	// Below this many covered cells the percentile estimate is noise and
	// the default bounds are used instead.
	minimumCellCount = 20

	// Minimum color range in dB so near-uniform maps keep contrast.
	minimumSignalRange = 30.0
)

// SignalBounds represents the calculated signal strength boundaries used
// to normalize cell values into the color map.
type SignalBounds struct {
	Min  float64 // 5th percentile signal strength in dBm
	Max  float64 // 95th percentile signal strength in dBm
	Mean float64 // Mean signal strength in dBm
}

func defaultSignalBounds() SignalBounds {
	return SignalBounds{
		Min:  defaultMinSignal,
		Max:  defaultMaxSignal,
		Mean: (defaultMinSignal + defaultMaxSignal) / 2,
	}
}

// ComputeSignalBounds derives percentile-based bounds from the covered
// grid cells. Values outside the 5th..95th percentile window are clamped
// by the color mapper, which keeps a few hot spots from washing out the
// rest of the map.
func ComputeSignalBounds(values []float64) SignalBounds {
	covered := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			covered = append(covered, v)
		}
	}
	if len(covered) < minimumCellCount {
		return defaultSignalBounds()
	}

	slices.Sort(covered)

	bounds := SignalBounds{
		Min:  stat.Quantile(0.05, stat.Empirical, covered, nil),
		Max:  stat.Quantile(0.95, stat.Empirical, covered, nil),
		Mean: stat.Mean(covered, nil),
	}

	if bounds.Max-bounds.Min < minimumSignalRange {
		center := (bounds.Max + bounds.Min) / 2
		bounds.Min = center - minimumSignalRange/2
		bounds.Max = center + minimumSignalRange/2
	}

	return bounds
}
