// Package pathloss converts RSSI observations into distance estimates
// under a selectable propagation model, and calibrates the path loss
// exponent from field measurements.
package pathloss

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/rfrecon/wardrive-df/internal/df"
)

const (
	speedOfLight = 299792458.0 // m/s

	// Terrain models have no closed-form inverse and are solved by
	// bisection until the distance bracket narrows to this width.
	bisectionTolerance = 0.1 // meters

	// Hata family constants: 2.4 GHz band, 30 m base station, 1.5 m
	// mobile, taken from the standard model formulation.
	hataFrequencyMHz = 2400.0
	hataBaseHeight   = 30.0
	hataMobileHeight = 1.5

	maxDistanceHata       = 100_000.0 // meters
	maxDistanceDenseUrban = 50_000.0
	maxDistanceRural      = 200_000.0
)

// CalibrationPoint is one observed distance/RSSI pair used to fit the
// path loss exponent.
type CalibrationPoint struct {
	Distance float64 // meters
	RSSI     float64 // dBm
	TxPower  float64 // dBm
}

// WithLogger sets the logger for the calculator.
func WithLogger(logger *slog.Logger) func(*Calculator) {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// Calculator inverts RSSI into distance under the configured model.
// Calibration mutates the path loss exponent in place; the mutex makes
// that safe against concurrent distance calculations.
type Calculator struct {
	cfg    df.PathLossConfig
	logger *slog.Logger

	mu       sync.RWMutex
	exponent float64
}

// New creates a Calculator for the given model configuration.
func New(cfg df.PathLossConfig, options ...func(*Calculator)) *Calculator {
	c := Calculator{
		cfg:      cfg,
		exponent: cfg.PathLossExponent,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Exponent returns the current path loss exponent, which may have been
// updated by calibration.
func (c *Calculator) Exponent() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exponent
}

// Distance estimates the transmitter distance in meters from an observed
// RSSI and the transmitter power. The result is clamped to at least the
// reference distance to avoid degenerate near-field values.
func (c *Calculator) Distance(rssi, txPower float64) float64 {
	loss := txPower - rssi

	var d float64
	switch c.cfg.Model {
	case df.ModelHata:
		d = c.invert(c.hataLoss, loss, maxDistanceHata)
	case df.ModelIndoor:
		d = c.indoorDistance(loss)
	case df.ModelDenseUrban:
		d = c.invert(c.denseUrbanLoss, loss, maxDistanceDenseUrban)
	case df.ModelRural:
		d = c.invert(c.ruralLoss, loss, maxDistanceRural)
	default:
		d = c.freeSpaceDistance(loss)
	}

	return math.Max(d, c.cfg.ReferenceDistance)
}

// RSSI predicts the received signal strength at the given distance, the
// forward counterpart of Distance. Useful for simulation and testing the
// inversion round trip.
func (c *Calculator) RSSI(distance, txPower float64) float64 {
	distance = math.Max(distance, c.cfg.ReferenceDistance)

	var loss float64
	switch c.cfg.Model {
	case df.ModelHata:
		loss = c.hataLoss(distance)
	case df.ModelIndoor:
		loss = c.indoorLoss(distance)
	case df.ModelDenseUrban:
		loss = c.denseUrbanLoss(distance)
	case df.ModelRural:
		loss = c.ruralLoss(distance)
	default:
		loss = c.freeSpaceLoss(distance)
	}

	return txPower - loss
}

// Calibrate fits the path loss exponent to observed (distance, loss)
// pairs with a log-distance linear regression and updates the calculator
// in place. At least two points at distinct distances are required.
func (c *Calculator) Calibrate(points []CalibrationPoint) error {
	if len(points) < 2 {
		return errors.New("calibration requires at least two points")
	}

	logDist := make([]float64, 0, len(points))
	losses := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Distance <= 0 {
			return fmt.Errorf("invalid calibration distance: %f", p.Distance)
		}
		logDist = append(logDist, math.Log10(p.Distance))
		losses = append(losses, p.TxPower-p.RSSI)
	}

	// loss = alpha + 10n·log10(d), so the slope recovers the exponent.
	_, slope := stat.LinearRegression(logDist, losses, nil, false)
	exponent := slope / 10

	if math.IsNaN(exponent) || exponent <= 0 {
		return fmt.Errorf("degenerate calibration: fitted exponent %f", exponent)
	}

	c.mu.Lock()
	c.exponent = exponent
	c.mu.Unlock()

	c.logger.Info("calibrated path loss exponent", slog.Float64("exponent", exponent))
	return nil
}

// fsplConstant folds frequency and the speed of light into the Friis
// formula, assuming unit gain antennas.
func (c *Calculator) fsplConstant() float64 {
	return 20*math.Log10(c.cfg.Frequency) + 20*math.Log10(4*math.Pi/speedOfLight)
}

func (c *Calculator) freeSpaceLoss(d float64) float64 {
	return 20*math.Log10(d) + c.fsplConstant()
}

func (c *Calculator) freeSpaceDistance(loss float64) float64 {
	return math.Pow(10, (loss-c.fsplConstant())/20)
}

func (c *Calculator) indoorLoss(d float64) float64 {
	pl0 := c.fsplConstant() + 20*math.Log10(c.cfg.ReferenceDistance)
	return pl0 + 10*c.Exponent()*math.Log10(d/c.cfg.ReferenceDistance) + c.cfg.WallPenetrationLoss
}

func (c *Calculator) indoorDistance(loss float64) float64 {
	pl0 := c.fsplConstant() + 20*math.Log10(c.cfg.ReferenceDistance)
	effective := loss - pl0 - c.cfg.WallPenetrationLoss
	if effective <= 0 {
		return c.cfg.ReferenceDistance
	}
	return c.cfg.ReferenceDistance * math.Pow(10, effective/(10*c.Exponent()))
}

// hataLoss is the standard Hata model for suburban/urban environments.
func (c *Calculator) hataLoss(d float64) float64 {
	aHm := (1.1*math.Log10(hataFrequencyMHz)-0.7)*hataMobileHeight -
		(1.56*math.Log10(hataFrequencyMHz) - 0.8)
	return 69.55 + 26.16*math.Log10(hataFrequencyMHz) - 13.82*math.Log10(hataBaseHeight) -
		aHm + (44.9-6.55*math.Log10(hataBaseHeight))*math.Log10(d/1000)
}

// denseUrbanLoss applies the large-city mobile antenna correction.
func (c *Calculator) denseUrbanLoss(d float64) float64 {
	correction := 3.2*math.Pow(math.Log10(11.75*hataMobileHeight), 2) - 4.97
	return 69.55 + 26.16*math.Log10(hataFrequencyMHz) - 13.82*math.Log10(hataBaseHeight) -
		correction + (44.9-6.55*math.Log10(hataBaseHeight))*math.Log10(d/1000)
}

// ruralLoss applies the open-area correction to the Hata model.
func (c *Calculator) ruralLoss(d float64) float64 {
	correction := 2*math.Pow(math.Log10(hataFrequencyMHz/28), 2) + 5.4
	return c.hataLoss(d) - correction
}

// invert solves lossFn(d) = loss by bisection over [0.1, maxDistance].
// The loss functions are monotonically increasing in distance, so the
// search converges; results outside the bracket clamp to its ends.
func (c *Calculator) invert(lossFn func(float64) float64, loss, maxDistance float64) float64 {
	lo, hi := 0.1, maxDistance

	if lossFn(lo) >= loss {
		return lo
	}
	if lossFn(hi) <= loss {
		return hi
	}

	for hi-lo > bisectionTolerance {
		mid := (lo + hi) / 2
		if lossFn(mid) < loss {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
