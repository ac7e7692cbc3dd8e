package storage

import (
	"database/sql"
	"time"
)

// Session describes one stored collection run.
type Session struct {
	ID         int64
	StartTime  time.Time
	SensorType string
	SensorID   string
	Config     *string
}

type measurementData struct {
	ID             int64
	SessionID      int64
	Timestamp      time.Time
	BSSID          string
	Frequency      float64
	SignalStrength float64
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	Angle          sql.NullFloat64
	Phase          sql.NullFloat64
	IQ             []byte
}

type resultData struct {
	ID                 int64
	SessionID          int64
	CreatedAt          time.Time
	TargetBSSID        string
	Algorithm          string
	Latitude           sql.NullFloat64
	Longitude          sql.NullFloat64
	PositionAccuracy   sql.NullFloat64
	PositionConfidence sql.NullFloat64
	PositionQuality    sql.NullString
	Azimuth            sql.NullFloat64
	AngleAccuracy      sql.NullFloat64
	AngleConfidence    sql.NullFloat64
	AngleQuality       sql.NullString
	ProcessingTimeUS   int64
	MeasurementCount   int64
}
