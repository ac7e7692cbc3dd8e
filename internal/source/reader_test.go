package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rfrecon/wardrive-df/internal/df"
)

func TestReadAll(t *testing.T) {
	input := `
{"bssid":"aa:bb:cc:dd:ee:01","signalStrength":-52.5,"frequency":2412000000,"timestamp":"2026-05-01T10:00:00Z","position":{"latitude":40.0,"longitude":-74.0}}

{"bssid":"aa:bb:cc:dd:ee:02","signalStrength":-61.0,"frequency":2437000000,"timestamp":"2026-05-01T10:00:01Z"}
`

	r := NewReader()
	measurements, err := r.ReadAll(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if len(measurements) != 2 {
		t.Fatalf("Expected 2 measurements, got %d", len(measurements))
	}

	first := measurements[0]
	if first.BSSID != "aa:bb:cc:dd:ee:01" {
		t.Errorf("Unexpected BSSID: %s", first.BSSID)
	}
	if first.SignalStrength != -52.5 {
		t.Errorf("Unexpected signal strength: %f", first.SignalStrength)
	}
	if first.Position == nil || first.Position.Latitude != 40.0 {
		t.Errorf("Unexpected position: %+v", first.Position)
	}
	if want := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC); !first.Timestamp.Equal(want) {
		t.Errorf("Unexpected timestamp: %s", first.Timestamp)
	}

	if measurements[1].Position != nil {
		t.Errorf("Second measurement should carry no position, got %+v", measurements[1].Position)
	}
}

func TestStreamToleratesScatteredErrors(t *testing.T) {
	// Malformed lines below the consecutive threshold are skipped.
	input := `{"bssid":"aa:01","signalStrength":-50}
not json
{"bssid":"aa:02","signalStrength":-51}
also not json
{"bssid":"aa:03","signalStrength":-52}
`

	r := NewReader(WithParseErrorsThreshold(2))
	measurements, err := r.ReadAll(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(measurements) != 3 {
		t.Errorf("Expected 3 measurements, got %d", len(measurements))
	}
}

func TestStreamTooManyConsecutiveErrors(t *testing.T) {
	input := `{"bssid":"aa:01","signalStrength":-50}
garbage one
garbage two
garbage three
{"bssid":"aa:02","signalStrength":-51}
`

	r := NewReader(WithParseErrorsThreshold(3))
	_, err := r.ReadAll(context.Background(), strings.NewReader(input))
	if !errors.Is(err, ErrTooManyParseErrors) {
		t.Fatalf("Expected ErrTooManyParseErrors, got %v", err)
	}
}

func TestStreamContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nobody reads from out, so the send blocks until the context check.
	out := make(chan df.Measurement)

	r := NewReader()
	err := r.Stream(ctx, strings.NewReader(`{"bssid":"aa:01","signalStrength":-50}`), out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
