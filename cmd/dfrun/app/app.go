package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/batch"
	"github.com/rfrecon/wardrive-df/internal/df/engine"
	"github.com/rfrecon/wardrive-df/internal/source"
	"github.com/rfrecon/wardrive-df/internal/storage"
	"github.com/rfrecon/wardrive-df/internal/telemetry"
)

const (
	storageDir = "data"

	measurementChanSize = 256
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, config.Storage.SensorType, config.Storage.SensorID, config.Engine)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	eng, err := engine.New(config.Engine, engine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err = eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer eng.Stop(context.Background())

	if len(config.AccessPoints) > 0 || len(config.PathLossPoints) > 0 {
		err = eng.Calibrate(ctx, df.Calibration{
			AccessPoints:   config.AccessPoints,
			PathLossPoints: config.PathLossPoints,
		})
		if err != nil {
			return fmt.Errorf("failed to calibrate: %w", err)
		}
		logger.Info("calibration applied",
			slog.Int("accessPoints", len(config.AccessPoints)),
			slog.Int("pathLossPoints", len(config.PathLossPoints)))
	}

	var provider telemetry.Provider
	if config.Telemetry.Enabled {
		provider = &telemetry.Static{
			Latitude:  config.Telemetry.Latitude,
			Longitude: config.Telemetry.Longitude,
			Altitude:  config.Telemetry.Altitude,
		}
	}

	f, err := os.Open(config.Input.MeasurementsFile)
	if err != nil {
		return fmt.Errorf("failed to open measurements file: %w", err)
	}
	defer f.Close()

	buffer, err := batch.NewBuffer(config.Input.BatchSize, config.Input.FlushCount)
	if err != nil {
		return fmt.Errorf("failed to create buffer: %w", err)
	}

	started := time.Now()
	measurements := make(chan df.Measurement, measurementChanSize)
	reader := source.NewReader(source.WithLogger(logger))

	var read, estimates int64

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(measurements)
		return reader.Stream(ctx, f, measurements)
	})

	g.Go(func() error {
		for m := range measurements {
			read++

			if m.Position == nil && provider != nil {
				if t := provider.Get(); t.Latitude != nil && t.Longitude != nil {
					m.Position = &df.Position{Latitude: *t.Latitude, Longitude: *t.Longitude}
				}
			}

			buffer.Insert(m)
			if !buffer.IsFull() {
				continue
			}

			n, err := processBatch(ctx, store, eng, sessionID, buffer.Flush())
			if err != nil {
				return err
			}
			estimates += n
		}

		n, err := processBatch(ctx, store, eng, sessionID, buffer.DrainAll())
		if err != nil {
			return err
		}
		estimates += n
		return nil
	})

	if err = g.Wait(); err != nil {
		return err
	}

	metrics := eng.Metrics()
	logger.Info("processing complete",
		slog.String("measurements", humanize.Comma(read)),
		slog.String("targets", humanize.Comma(metrics.Targets)),
		slog.String("estimates", humanize.Comma(estimates)),
		slog.String("failures", humanize.Comma(metrics.Failures)),
		slog.Duration("avgPerTarget", metrics.AvgProcessTime),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		slog.Int64("session", sessionID))

	return nil
}

// processBatch persists a measurement window, runs the engine over it and
// stores every produced result. Returns the number of results.
func processBatch(ctx context.Context, store *storage.SqliteStore, eng *engine.Engine, sessionID int64, window []df.Measurement) (int64, error) {
	if len(window) == 0 {
		return 0, nil
	}

	if err := store.StoreMeasurements(ctx, sessionID, window); err != nil {
		return 0, fmt.Errorf("storing measurements: %w", err)
	}

	results, err := eng.ProcessMeasurements(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("processing measurements: %w", err)
	}

	for _, r := range results {
		if _, err = store.StoreResult(ctx, sessionID, r); err != nil {
			return 0, fmt.Errorf("storing result: %w", err)
		}
	}
	return int64(len(results)), nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	} else {
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("df_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
