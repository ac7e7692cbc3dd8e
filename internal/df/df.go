// Package df defines the core data model of the direction finding engine:
// measurements coming in from the capture layer, position and angle
// estimates going out, and the quality classification applied to both.
package df

import (
	"time"
)

// Quality grades an estimate from excellent down to invalid, derived
// deterministically from its accuracy and confidence.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityInvalid   Quality = "invalid"
)

// Position is a geographic point attached to a measurement, typically the
// location of the sensor at capture time.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IQ is a row of raw IQ samples captured by a single antenna element,
// serialized as [i, q] pairs.
type IQ [][2]float64

// Complex converts the row into complex samples for array processing.
func (s IQ) Complex() []complex128 {
	if len(s) == 0 {
		return nil
	}
	out := make([]complex128, len(s))
	for i, p := range s {
		out[i] = complex(p[0], p[1])
	}
	return out
}

// Measurement is a single sensor observation of a target emitter.
// Measurements are immutable once created; algorithms only read them.
type Measurement struct {
	SignalStrength float64   `json:"signalStrength"` // RSSI in dBm
	Frequency      float64   `json:"frequency"`      // Hz
	BSSID          string    `json:"bssid"`          // Target identifier
	Timestamp      time.Time `json:"timestamp"`      // Capture time
	Position       *Position `json:"position,omitempty"`
	Angle          *float64  `json:"angle,omitempty"` // degrees
	Phase          *float64  `json:"phase,omitempty"` // radians
	IQ             IQ        `json:"iq,omitempty"`    // raw samples, one antenna element
}

// PositionEstimate is an estimated emitter location with quantified
// accuracy (meters, >= 0) and confidence ([0, 1]).
type PositionEstimate struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   *float64  `json:"altitude,omitempty"`
	Accuracy   float64   `json:"accuracy"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Algorithm  string    `json:"algorithm"`
	Quality    Quality   `json:"quality"`
}

// AngleEstimate is an estimated angle of arrival with quantified accuracy
// (degrees) and confidence ([0, 1]). Azimuth is normalized to [0, 360).
type AngleEstimate struct {
	Azimuth    float64   `json:"azimuth"`
	Elevation  *float64  `json:"elevation,omitempty"`
	Accuracy   float64   `json:"accuracy"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Algorithm  string    `json:"algorithm"`
	Quality    Quality   `json:"quality"`
}

// Result wraps everything known about a single target after one
// processing pass. A Result always carries at least one of Position or
// Angle; a failed pass yields no Result at all.
type Result struct {
	TargetBSSID    string            `json:"targetBSSID"`
	Position       *PositionEstimate `json:"position,omitempty"`
	Angle          *AngleEstimate    `json:"angle,omitempty"`
	Measurements   []Measurement     `json:"measurements,omitempty"`
	ProcessingTime time.Duration     `json:"processingTime"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ClassifyPosition grades a position estimate. Thresholds are in meters.
func ClassifyPosition(accuracyMeters, confidence float64) Quality {
	switch {
	case accuracyMeters < 10 && confidence > 0.8:
		return QualityExcellent
	case accuracyMeters < 25 && confidence > 0.6:
		return QualityGood
	case accuracyMeters < 50 && confidence > 0.4:
		return QualityFair
	case accuracyMeters < 100 && confidence > 0.2:
		return QualityPoor
	default:
		return QualityInvalid
	}
}

// ClassifyAngle grades an angle estimate. Thresholds are in degrees.
func ClassifyAngle(accuracyDegrees, confidence float64) Quality {
	switch {
	case accuracyDegrees < 2 && confidence > 0.8:
		return QualityExcellent
	case accuracyDegrees < 5 && confidence > 0.6:
		return QualityGood
	case accuracyDegrees < 10 && confidence > 0.4:
		return QualityFair
	case accuracyDegrees < 20 && confidence > 0.2:
		return QualityPoor
	default:
		return QualityInvalid
	}
}
