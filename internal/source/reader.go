// Package source streams measurements out of newline-delimited JSON
// capture files, the interchange format produced by the collection layer.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rfrecon/wardrive-df/internal/df"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	// Capture lines can carry large embedded IQ payloads.
	maxLineBytes = 4 << 20
)

// ErrTooManyParseErrors is returned when the number of consecutive parse
// errors exceeds the threshold.
var ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

// WithLogger sets the logger for the reader.
func WithLogger(logger *slog.Logger) func(r *Reader) {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors.
func WithParseErrorsThreshold(threshold uint8) func(r *Reader) {
	return func(r *Reader) {
		r.parseErrorsThreshold = threshold
	}
}

// Reader decodes measurements from a JSON lines stream. Blank lines are
// skipped; malformed lines are tolerated up to the consecutive parse
// error threshold.
type Reader struct {
	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewReader creates a Reader with a discard logger.
func NewReader(options ...func(r *Reader)) *Reader {
	r := Reader{
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Stream decodes measurements from src and sends them to out until the
// stream ends, the context is cancelled, or too many consecutive lines
// fail to parse. The out channel is not closed; that is the caller's
// responsibility.
func (r *Reader) Stream(ctx context.Context, src io.Reader, out chan<- df.Measurement) error {
	var parseErrors uint8

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var m df.Measurement
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			parseErrors++
			r.logger.Warn(fmt.Sprintf("error parsing measurement: %s", err.Error()), slog.String("line", line))

			if parseErrors >= r.parseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		parseErrors = 0 // reset counter

		select {
		case out <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading measurements: %w", err)
	}

	return nil
}

// ReadAll decodes the whole stream into memory. Intended for small batch
// files and tests.
func (r *Reader) ReadAll(ctx context.Context, src io.Reader) ([]df.Measurement, error) {
	out := make(chan df.Measurement, 64)
	errc := make(chan error, 1)

	go func() {
		errc <- r.Stream(ctx, src, out)
		close(out)
	}()

	var measurements []df.Measurement
	for m := range out {
		measurements = append(measurements, m)
	}

	if err := <-errc; err != nil {
		return nil, err
	}
	return measurements, nil
}
