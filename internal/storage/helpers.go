package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rfrecon/wardrive-df/internal/df"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError rolls the transaction back unless it was already
// committed.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func toMeasurementData(sessionID int64, m df.Measurement) (*measurementData, error) {
	data := measurementData{
		SessionID:      sessionID,
		Timestamp:      m.Timestamp.UTC(),
		BSSID:          m.BSSID,
		Frequency:      m.Frequency,
		SignalStrength: m.SignalStrength,
		Angle:          nullFloat(m.Angle),
		Phase:          nullFloat(m.Phase),
	}

	if m.Position != nil {
		data.Latitude = sql.NullFloat64{Float64: m.Position.Latitude, Valid: true}
		data.Longitude = sql.NullFloat64{Float64: m.Position.Longitude, Valid: true}
	}

	if len(m.IQ) > 0 {
		p, err := json.Marshal(m.IQ)
		if err != nil {
			return nil, fmt.Errorf("marshaling IQ samples: %w", err)
		}
		data.IQ = p
	}

	return &data, nil
}

func fromMeasurementData(data *measurementData) (df.Measurement, error) {
	m := df.Measurement{
		SignalStrength: data.SignalStrength,
		Frequency:      data.Frequency,
		BSSID:          data.BSSID,
		Timestamp:      data.Timestamp,
	}

	if data.Latitude.Valid && data.Longitude.Valid {
		m.Position = &df.Position{
			Latitude:  data.Latitude.Float64,
			Longitude: data.Longitude.Float64,
		}
	}
	if data.Angle.Valid {
		m.Angle = &data.Angle.Float64
	}
	if data.Phase.Valid {
		m.Phase = &data.Phase.Float64
	}

	if len(data.IQ) > 0 {
		if err := json.Unmarshal(data.IQ, &m.IQ); err != nil {
			return df.Measurement{}, fmt.Errorf("unmarshaling IQ samples: %w", err)
		}
	}

	return m, nil
}

func toResultData(sessionID int64, r *df.Result) *resultData {
	data := resultData{
		SessionID:        sessionID,
		TargetBSSID:      r.TargetBSSID,
		Algorithm:        r.Metadata["algorithm"],
		ProcessingTimeUS: r.ProcessingTime.Microseconds(),
		MeasurementCount: int64(len(r.Measurements)),
	}

	if p := r.Position; p != nil {
		data.Latitude = sql.NullFloat64{Float64: p.Latitude, Valid: true}
		data.Longitude = sql.NullFloat64{Float64: p.Longitude, Valid: true}
		data.PositionAccuracy = sql.NullFloat64{Float64: p.Accuracy, Valid: true}
		data.PositionConfidence = sql.NullFloat64{Float64: p.Confidence, Valid: true}
		data.PositionQuality = sql.NullString{String: string(p.Quality), Valid: true}
		if data.Algorithm == "" {
			data.Algorithm = p.Algorithm
		}
	}

	if a := r.Angle; a != nil {
		data.Azimuth = sql.NullFloat64{Float64: a.Azimuth, Valid: true}
		data.AngleAccuracy = sql.NullFloat64{Float64: a.Accuracy, Valid: true}
		data.AngleConfidence = sql.NullFloat64{Float64: a.Confidence, Valid: true}
		data.AngleQuality = sql.NullString{String: string(a.Quality), Valid: true}
		if data.Algorithm == "" {
			data.Algorithm = a.Algorithm
		}
	}

	return &data
}

func fromResultData(data *resultData) *df.Result {
	r := df.Result{
		TargetBSSID:    data.TargetBSSID,
		ProcessingTime: time.Duration(data.ProcessingTimeUS) * time.Microsecond,
		Metadata:       map[string]string{"algorithm": data.Algorithm},
	}

	if data.Latitude.Valid && data.Longitude.Valid {
		r.Position = &df.PositionEstimate{
			Latitude:   data.Latitude.Float64,
			Longitude:  data.Longitude.Float64,
			Accuracy:   data.PositionAccuracy.Float64,
			Confidence: data.PositionConfidence.Float64,
			Timestamp:  data.CreatedAt,
			Algorithm:  data.Algorithm,
			Quality:    df.Quality(data.PositionQuality.String),
		}
	}

	if data.Azimuth.Valid {
		r.Angle = &df.AngleEstimate{
			Azimuth:    data.Azimuth.Float64,
			Accuracy:   data.AngleAccuracy.Float64,
			Confidence: data.AngleConfidence.Float64,
			Timestamp:  data.CreatedAt,
			Algorithm:  data.Algorithm,
			Quality:    df.Quality(data.AngleQuality.String),
		}
	}

	return &r
}
