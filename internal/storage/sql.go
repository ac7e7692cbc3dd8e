package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      sensor_type,
                      sensor_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    sensor_type,
    sensor_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    sensor_type,
    sensor_id,
    config
FROM sessions`

	insertMeasurementSQL = `
INSERT INTO measurements (session_id,
                          timestamp,
                          bssid,
                          frequency,
                          signal_strength,
                          latitude,
                          longitude,
                          angle,
                          phase,
                          iq)
VALUES `

	insertResultSQL = `
INSERT INTO results (session_id,
                     created_at,
                     target_bssid,
                     algorithm,
                     latitude,
                     longitude,
                     position_accuracy,
                     position_confidence,
                     position_quality,
                     azimuth,
                     angle_accuracy,
                     angle_confidence,
                     angle_quality,
                     processing_time_us,
                     measurement_count)
VALUES (?, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectMeasurementsSQL = `
SELECT
    timestamp,
    bssid,
    frequency,
    signal_strength,
    latitude,
    longitude,
    angle,
    phase,
    iq
FROM measurements
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp`

	selectResultsSQL = `
SELECT
    created_at,
    target_bssid,
    algorithm,
    latitude,
    longitude,
    position_accuracy,
    position_confidence,
    position_quality,
    azimuth,
    angle_accuracy,
    angle_confidence,
    angle_quality,
    processing_time_us,
    measurement_count
FROM results
WHERE
    session_id = ?
ORDER BY created_at`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_measurements_session_time ON measurements (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_measurements_bssid ON measurements (session_id, bssid);
CREATE INDEX IF NOT EXISTS idx_results_session ON results (session_id, target_bssid);`
)

//go:embed schema.sql
var initSchemaSQL string
