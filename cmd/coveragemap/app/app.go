package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/sigmap"
	"github.com/rfrecon/wardrive-df/internal/storage"
)

const jpegQuality = 98

// Run renders a coverage map from a recorded survey session.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	var opts []storage.ReaderOption
	if config.BSSID != "" {
		opts = append(opts, storage.WithBSSID(config.BSSID))
	}

	reader, err := store.ReadMeasurements(ctx, config.SessionID, opts...)
	if err != nil {
		return fmt.Errorf("reading session %d: %w", config.SessionID, err)
	}
	defer reader.Close()

	mapper := sigmap.New(df.SignalMappingConfig{
		Resolution:        config.Resolution,
		Interpolation:     df.InterpolationIDW,
		CoverageThreshold: -70,
	}, sigmap.WithLogger(logger))

	var samples int64
	for reader.Next(ctx) {
		if mapper.AddMeasurement(reader.Current()) {
			samples++
		}
	}
	if err = reader.Error(); err != nil {
		return fmt.Errorf("reading measurements: %w", err)
	}

	logger.Info("session loaded",
		slog.Int64("session", config.SessionID),
		slog.String("samples", humanize.Comma(samples)))

	grid, err := mapper.Grid()
	if err != nil {
		return fmt.Errorf("building coverage grid: %w", err)
	}

	bounds := ComputeSignalBounds(grid.Values)
	if config.MinSignal != nil {
		bounds.Min = *config.MinSignal
	}
	if config.MaxSignal != nil {
		bounds.Max = *config.MaxSignal
	}

	renderer, err := NewMapRenderer(RenderConfig{
		ColorTheme: config.Theme,
		FontFile:   config.FontFile,
		Annotate:   !config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	img, err := renderer.Render(grid, bounds, MapInfo{
		BSSID:   config.BSSID,
		Samples: samples,
	})
	if err != nil {
		return fmt.Errorf("rendering coverage map: %w", err)
	}

	if err = writeImage(config.OutputFile, config.Format, img); err != nil {
		return err
	}

	logger.Info("coverage map written",
		slog.String("file", config.OutputFile),
		slog.Int("width", grid.Width),
		slog.Int("height", grid.Height),
		slog.Float64("min_dbm", bounds.Min),
		slog.Float64("max_dbm", bounds.Max))
	return nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}()

	switch format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(out, img)
	}
	if err != nil {
		return fmt.Errorf("encoding %s image: %w", format, err)
	}
	return nil
}
