// Package engine orchestrates the direction finding algorithms: it fans
// measurement batches out to per-target workers, dispatches the primary
// algorithm with optional fallback, and keeps a result cache and running
// metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rfrecon/wardrive-df/internal/df"
	"github.com/rfrecon/wardrive-df/internal/df/beamform"
	"github.com/rfrecon/wardrive-df/internal/df/music"
	"github.com/rfrecon/wardrive-df/internal/df/sigmap"
	"github.com/rfrecon/wardrive-df/internal/df/triangulate"
)

// ErrNotRunning is returned by ProcessMeasurements before Start or after
// Stop.
var ErrNotRunning = errors.New("engine is not running")

// Metrics is a snapshot of the engine's processing counters.
type Metrics struct {
	Batches        int64         // measurement batches processed
	Targets        int64         // per-target processing passes
	Estimates      int64         // passes that produced a result
	Failures       int64         // passes that returned an error or panicked
	AvgProcessTime time.Duration // mean per-target processing time
}

// WithLogger sets the logger for the engine and every algorithm it hosts.
func WithLogger(logger *slog.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine hosts the configured algorithms and processes measurement
// batches. All methods are safe for concurrent use.
type Engine struct {
	logger *slog.Logger

	mu       sync.RWMutex
	cfg      df.Config
	registry map[df.Kind]df.Algorithm
	running  bool

	mapper *sigmap.Mapper

	cacheMu sync.RWMutex
	cache   map[string]*df.Result

	metricsMu sync.Mutex
	metrics   Metrics
}

// New creates an Engine from a validated configuration.
func New(cfg df.Config, options ...func(*Engine)) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]*df.Result),
	}

	for _, option := range options {
		option(&e)
	}

	registry, err := e.buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	e.cfg = cfg
	e.registry = registry
	e.mapper = sigmap.New(cfg.SignalMapping, sigmap.WithLogger(e.logger))
	return &e, nil
}

// buildRegistry constructs one algorithm instance per enabled kind.
func (e *Engine) buildRegistry(cfg df.Config) (map[df.Kind]df.Algorithm, error) {
	registry := make(map[df.Kind]df.Algorithm, len(cfg.Enabled))
	for _, kind := range cfg.Enabled {
		switch kind {
		case df.KindRSSTriangulation:
			registry[kind] = triangulate.New(cfg.Triangulation, cfg.PathLoss,
				triangulate.WithLogger(e.logger))

		case df.KindMUSIC:
			p, err := music.New(cfg.Music, cfg.Array, music.WithLogger(e.logger))
			if err != nil {
				return nil, fmt.Errorf("music: %w", err)
			}
			registry[kind] = p

		case df.KindBeamforming:
			s, err := beamform.New(cfg.Music, cfg.Array, beamform.WithLogger(e.logger))
			if err != nil {
				return nil, fmt.Errorf("beamforming: %w", err)
			}
			registry[kind] = s

		default:
			return nil, fmt.Errorf("unknown algorithm kind %q", kind)
		}
	}
	return registry, nil
}

// Start brings every hosted algorithm up and marks the engine running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	for kind, alg := range e.registry {
		if err := alg.Start(ctx); err != nil {
			return fmt.Errorf("starting %s: %w", kind, err)
		}
	}

	e.running = true
	e.logger.Info("engine started",
		slog.Int("algorithms", len(e.registry)),
		slog.String("primary", string(e.cfg.Primary)))
	return nil
}

// Stop shuts every hosted algorithm down. Errors are joined so one
// misbehaving algorithm does not mask the others.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false

	var errs []error
	for kind, alg := range e.registry {
		if err := alg.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", kind, err))
		}
	}

	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}

// Running reports whether the engine accepts measurements.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ProcessMeasurements groups the batch by target BSSID and processes each
// target on a bounded worker pool. Targets that fail are logged and
// counted; they never abort the batch. The returned results carry one
// entry per target that produced an estimate.
func (e *Engine) ProcessMeasurements(ctx context.Context, measurements []df.Measurement) ([]*df.Result, error) {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil, ErrNotRunning
	}
	primary := e.registry[e.cfg.Primary]
	var fallback df.Algorithm
	if e.cfg.Fallback != "" {
		fallback = e.registry[e.cfg.Fallback]
	}
	workers := e.cfg.Workers
	mapper := e.mapper
	e.mu.RUnlock()

	if len(measurements) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	for _, m := range measurements {
		mapper.AddMeasurement(m)
	}

	groups := make(map[string][]df.Measurement)
	for _, m := range measurements {
		groups[m.BSSID] = append(groups[m.BSSID], m)
	}

	var (
		resultsMu sync.Mutex
		results   []*df.Result
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for target, group := range groups {
		g.Go(func() error {
			result := e.processTarget(ctx, primary, fallback, target, group)
			if result == nil {
				return nil
			}

			e.cacheMu.Lock()
			e.cache[target] = result
			e.cacheMu.Unlock()

			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.metricsMu.Lock()
	e.metrics.Batches++
	e.metricsMu.Unlock()

	return results, nil
}

// processTarget runs the primary algorithm on one target's measurements,
// falling back when the primary yields nothing or fails. A panicking
// algorithm is contained to its target.
func (e *Engine) processTarget(ctx context.Context, primary, fallback df.Algorithm, target string, group []df.Measurement) (result *df.Result) {
	started := time.Now()

	defer func() {
		elapsed := time.Since(started)

		if r := recover(); r != nil {
			e.logger.Error("algorithm panicked",
				slog.String("target", target),
				slog.Any("panic", r))
			result = nil
			e.record(elapsed, false, true)
			return
		}

		if result != nil {
			result.ProcessingTime = elapsed
		}
		e.record(elapsed, result != nil, false)
	}()

	result, err := primary.Process(ctx, target, group)
	if err != nil {
		e.logger.Warn("primary algorithm failed",
			slog.String("target", target),
			slog.String("algorithm", string(primary.Kind())),
			slog.String("error", err.Error()))
		result = nil
	}

	if result == nil && fallback != nil {
		result, err = fallback.Process(ctx, target, group)
		if err != nil {
			e.logger.Warn("fallback algorithm failed",
				slog.String("target", target),
				slog.String("algorithm", string(fallback.Kind())),
				slog.String("error", err.Error()))
			result = nil
		}
	}

	return result
}

// record updates the processing counters, keeping an incremental mean of
// per-target processing time.
func (e *Engine) record(elapsed time.Duration, produced, failed bool) {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	e.metrics.Targets++
	if produced {
		e.metrics.Estimates++
	}
	if failed {
		e.metrics.Failures++
	}

	n := e.metrics.Targets
	e.metrics.AvgProcessTime += (elapsed - e.metrics.AvgProcessTime) / time.Duration(n)
}

// Metrics returns a snapshot of the processing counters.
func (e *Engine) Metrics() Metrics {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return e.metrics
}

// CachedResult returns the most recent result for a target, if any.
func (e *Engine) CachedResult(target string) (*df.Result, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	r, ok := e.cache[target]
	return r, ok
}

// ClearCache drops every cached result.
func (e *Engine) ClearCache() {
	e.cacheMu.Lock()
	e.cache = make(map[string]*df.Result)
	e.cacheMu.Unlock()
}

// Calibrate routes the calibration payload to every hosted algorithm.
func (e *Engine) Calibrate(ctx context.Context, data df.Calibration) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var errs []error
	for kind, alg := range e.registry {
		if err := alg.Calibrate(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("calibrating %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Reconfigure replaces the algorithm set with instances built from the
// new configuration. Running algorithms are stopped first and the new
// set is started if the engine was running. The result cache survives.
func (e *Engine) Reconfigure(ctx context.Context, cfg df.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry, err := e.buildRegistry(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		for kind, alg := range e.registry {
			if err := alg.Stop(ctx); err != nil {
				e.logger.Warn("stopping algorithm during reconfigure",
					slog.String("algorithm", string(kind)),
					slog.String("error", err.Error()))
			}
		}
		for kind, alg := range registry {
			if err := alg.Start(ctx); err != nil {
				return fmt.Errorf("starting %s: %w", kind, err)
			}
		}
	}

	e.cfg = cfg
	e.registry = registry
	e.mapper = sigmap.New(cfg.SignalMapping, sigmap.WithLogger(e.logger))

	e.logger.Info("engine reconfigured", slog.String("primary", string(cfg.Primary)))
	return nil
}

// EstimatePosition runs the triangulation algorithm directly over the
// given measurements, bypassing dispatch. Returns nil when triangulation
// is not enabled or yields no estimate.
func (e *Engine) EstimatePosition(measurements []df.Measurement) *df.PositionEstimate {
	e.mu.RLock()
	alg := e.registry[df.KindRSSTriangulation]
	e.mu.RUnlock()

	t, ok := alg.(*triangulate.Triangulator)
	if !ok {
		return nil
	}
	return t.EstimatePosition(measurements)
}

// EstimateAngle runs the MUSIC estimator directly over the given
// measurements, bypassing dispatch. Returns nil when MUSIC is not enabled
// or yields no estimate.
func (e *Engine) EstimateAngle(measurements []df.Measurement) *df.AngleEstimate {
	e.mu.RLock()
	alg := e.registry[df.KindMUSIC]
	e.mu.RUnlock()

	p, ok := alg.(*music.Processor)
	if !ok {
		return nil
	}
	return p.EstimateAngle(measurements)
}

// AlgorithmState describes one hosted algorithm's role in dispatch.
type AlgorithmState struct {
	Running  bool
	Primary  bool
	Fallback bool
}

// AlgorithmStatus reports every hosted algorithm and its dispatch role.
func (e *Engine) AlgorithmStatus() map[df.Kind]AlgorithmState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := make(map[df.Kind]AlgorithmState, len(e.registry))
	for kind := range e.registry {
		status[kind] = AlgorithmState{
			Running:  e.running,
			Primary:  kind == e.cfg.Primary,
			Fallback: e.cfg.Fallback != "" && kind == e.cfg.Fallback,
		}
	}
	return status
}

// Algorithms lists the kinds of the hosted algorithms.
func (e *Engine) Algorithms() []df.Kind {
	e.mu.RLock()
	defer e.mu.RUnlock()

	kinds := make([]df.Kind, 0, len(e.registry))
	for kind := range e.registry {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Mapper exposes the signal strength mapper fed by processed
// measurements. Reconfigure replaces the mapper, so callers should not
// hold the returned pointer across reconfiguration.
func (e *Engine) Mapper() *sigmap.Mapper {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mapper
}
