package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rfrecon/wardrive-df/internal/df"
)

// ErrNoData indicates that no measurements exist for the given parameters.
var ErrNoData = fmt.Errorf("no data available")

// ReaderOption configures a MeasurementReader with specific filtering
// criteria.
type ReaderOption func(*MeasurementReader)

// WithBSSID restricts the reader to measurements of a single target.
func WithBSSID(bssid string) ReaderOption {
	return func(r *MeasurementReader) {
		r.bssid = &bssid
	}
}

// WithStartTime sets the start time filter for the reader. Measurements
// with timestamps before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *MeasurementReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the reader. Measurements with
// timestamps after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *MeasurementReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters. This is a
// convenience function equivalent to applying both WithStartTime and
// WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *MeasurementReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// MeasurementReader provides an iterator-based interface for reading the
// raw measurements of a session in timestamp order.
type MeasurementReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	bssid     *string
	startTime *time.Time
	endTime   *time.Time

	current df.Measurement
	rows    *sql.Rows
	err     error
}

func newMeasurementReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*MeasurementReader, error) {
	if db == nil {
		return nil, errors.New("database connection required")
	}
	if sessionID <= 0 {
		return nil, errors.New("session ID required")
	}

	mr := &MeasurementReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(mr)
	}

	if err := mr.loadSession(ctx); err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if err := mr.initQuery(ctx); err != nil {
		return nil, fmt.Errorf("initializing query: %w", err)
	}
	return mr, nil
}

func (mr *MeasurementReader) loadSession(ctx context.Context) (err error) {
	stmt, err := mr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, mr.sessionID).Scan(&sess.ID, &sess.StartTime, &sess.SensorType, &sess.SensorID, &config); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	mr.session = &sess
	return
}

func (mr *MeasurementReader) initQuery(ctx context.Context) (err error) {
	if mr.startTime != nil && mr.endTime != nil && mr.startTime.After(*mr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", mr.startTime, mr.endTime)
	}

	query := selectMeasurementsSQL
	args := []any{mr.sessionID, timeOrBound(mr.startTime, false), timeOrBound(mr.endTime, true)}

	if mr.bssid != nil {
		query = strings.Replace(query, "ORDER BY timestamp", "AND bssid = ?\nORDER BY timestamp", 1)
		args = append(args, *mr.bssid)
	}

	stmt, err := mr.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if mr.rows, err = stmt.QueryContext(ctx, args...); err != nil {
		return err
	}
	return nil
}

// timeOrBound substitutes an open time filter with a bound wide enough to
// match every stored row.
func timeOrBound(t *time.Time, upper bool) time.Time {
	if t != nil {
		return *t
	}
	if upper {
		return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// Session returns metadata about the collection session this reader is
// accessing.
func (mr *MeasurementReader) Session() *Session {
	return mr.session
}

// Next advances the iterator and returns true if there is another
// measurement to read, false when iteration is complete or an error
// occurred.
func (mr *MeasurementReader) Next(ctx context.Context) bool {
	if mr.err != nil || mr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		mr.err = ctx.Err()
		return false
	default:
	}

	if !mr.rows.Next() {
		return false
	}

	var data measurementData
	if mr.err = mr.rows.Scan(
		&data.Timestamp,
		&data.BSSID,
		&data.Frequency,
		&data.SignalStrength,
		&data.Latitude,
		&data.Longitude,
		&data.Angle,
		&data.Phase,
		&data.IQ,
	); mr.err != nil {
		return false
	}

	mr.current, mr.err = fromMeasurementData(&data)
	return mr.err == nil
}

// Current returns the measurement at the iterator position. If called
// after Next() returns false, the behavior is undefined.
func (mr *MeasurementReader) Current() df.Measurement {
	return mr.current
}

// Error returns any error that occurred during iteration.
func (mr *MeasurementReader) Error() error {
	if mr.err != nil {
		return mr.err
	}
	if mr.rows != nil {
		return mr.rows.Err()
	}
	return nil
}

// Close releases the database resources held by the reader.
func (mr *MeasurementReader) Close() error {
	if mr.rows != nil {
		err := mr.rows.Close()
		mr.rows = nil
		return err
	}
	return nil
}
