package df

import "context"

// Kind identifies a direction finding algorithm.
type Kind string

const (
	KindRSSTriangulation Kind = "rss_triangulation"
	KindMUSIC            Kind = "music_aoa"
	KindBeamforming      Kind = "beamforming"
)

// AccessPoint is a reference emitter with a known position, used to
// anchor RSS triangulation.
type AccessPoint struct {
	BSSID     string  `json:"bssid" yaml:"bssid"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	TxPower   float64 `json:"txPower" yaml:"txPower"` // dBm, 0 means default
}

// PathLossSample is one observed (distance, rssi) pair used to calibrate
// the path loss exponent.
type PathLossSample struct {
	Distance float64 `json:"distance" yaml:"distance"` // meters
	RSSI     float64 `json:"rssi" yaml:"rssi"`         // dBm
	TxPower  float64 `json:"txPower" yaml:"txPower"`   // dBm
}

// Calibration is the payload routed to every algorithm's Calibrate hook.
// Algorithms pick out the parts they understand and ignore the rest.
type Calibration struct {
	AccessPoints   []AccessPoint    `json:"accessPoints,omitempty" yaml:"accessPoints"`
	PathLossPoints []PathLossSample `json:"pathLossPoints,omitempty" yaml:"pathLossPoints"`
}

// Algorithm is implemented by every direction finding estimator. Process
// returns (nil, nil) when no estimate can be produced from the given
// measurements; an error is reserved for genuine failures. Lifecycle and
// calibration hooks are optional; embed NopLifecycle for defaults.
type Algorithm interface {
	Kind() Kind
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Process(ctx context.Context, target string, measurements []Measurement) (*Result, error)
	Calibrate(ctx context.Context, data Calibration) error
}

// NopLifecycle provides default no-op Start, Stop and Calibrate hooks for
// algorithms that do not need them.
type NopLifecycle struct{}

func (NopLifecycle) Start(context.Context) error                { return nil }
func (NopLifecycle) Stop(context.Context) error                 { return nil }
func (NopLifecycle) Calibrate(context.Context, Calibration) error { return nil }
