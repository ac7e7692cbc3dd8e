// Package telemetry describes the sensor platform state attached to
// measurements at capture time. Providers abstract where that state comes
// from: a GPS feed on a moving platform, or a fixed survey position.
package telemetry

import (
	"time"
)

type Provider interface {
	Get() *Telemetry
}

// Telemetry is the sensor platform state at a point in time.
type Telemetry struct {
	Timestamp time.Time `json:"timestamp"`           // Timestamp of the telemetry fix
	Latitude  *float64  `json:"latitude,omitempty"`  // GPS latitude in degrees
	Longitude *float64  `json:"longitude,omitempty"` // GPS longitude in degrees
	Altitude  *float64  `json:"altitude,omitempty"`  // Altitude in meters
	Heading   *float64  `json:"heading,omitempty"`   // Platform heading in degrees
	Speed     *float64  `json:"speed,omitempty"`     // Ground speed in m/s
}

// Static is a Provider that always reports the same fixed position, used
// for stationary sensors and in tests.
type Static struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
}

// Get implements Provider.
func (s *Static) Get() *Telemetry {
	lat, lon := s.Latitude, s.Longitude
	return &Telemetry{
		Timestamp: time.Now().UTC(),
		Latitude:  &lat,
		Longitude: &lon,
		Altitude:  s.Altitude,
	}
}
