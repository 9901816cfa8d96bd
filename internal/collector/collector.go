// Package collector runs full collection cycles across the resource sampler,
// health registry, event tracker and metric store, and schedules exports of
// the combined report.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/events"
	"codeberg.org/mutker/pulse/internal/health"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
	"codeberg.org/mutker/pulse/internal/resource"
)

// ResourceReader is satisfied by *resource.Sampler.
type ResourceReader interface {
	Snapshot(ctx context.Context) resource.Snapshot
}

// HealthRunner is satisfied by *health.Registry.
type HealthRunner interface {
	RunAll(ctx context.Context) (health.Status, error)
}

// BusinessSummarizer is satisfied by *events.Tracker.
type BusinessSummarizer interface {
	Summarize(tr *events.TimeRange) events.Summary
}

// Report is the combined result of one collection cycle. A field is nil when
// its component is disabled, absent or failed during the cycle.
type Report struct {
	Timestamp   time.Time          `json:"timestamp" yaml:"timestamp"`
	Performance *resource.Snapshot `json:"performance" yaml:"performance"`
	Health      *health.Status     `json:"health" yaml:"health"`
	Business    *events.Summary    `json:"business" yaml:"business"`
	Metrics     *metrics.Snapshot  `json:"metrics" yaml:"metrics"`
}

const (
	sourceResources = "resources"
	sourceHealth    = "health"
	sourceBusiness  = "business"
	sourceMetrics   = "metrics"
	sourceExport    = "export"
)

type Collector struct {
	cfg       Config
	store     *metrics.Store
	resources ResourceReader
	health    HealthRunner
	business  BusinessSummarizer
	logger    logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	exports map[uint64]func()
	nextID  uint64
	wg      sync.WaitGroup
}

type Option func(*Collector)

func WithResources(r ResourceReader) Option {
	return func(c *Collector) {
		c.resources = r
	}
}

func WithHealth(h HealthRunner) Option {
	return func(c *Collector) {
		c.health = h
	}
}

func WithBusiness(b BusinessSummarizer) Option {
	return func(c *Collector) {
		c.business = b
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Collector) {
		c.logger = log.With("collector")
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

func New(cfg Config, store *metrics.Store, opts ...Option) (*Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "collector requires a metric store")
	}

	c := &Collector{
		cfg:     cfg,
		store:   store,
		logger:  logger.Nop(),
		now:     time.Now,
		exports: make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(c)
	}

	store.SetGauge("metrics_collector_running", "Whether the periodic collector is running", 0, nil)
	store.SetGauge("metrics_collection_interval_ms", "Configured collection interval", float64(cfg.Interval.Milliseconds()), nil)

	return c, nil
}

// CollectOnce runs one cycle. Each component is isolated: an error or panic
// in one is logged, counted in metrics_collection_errors_total and leaves its
// report field nil while the others still contribute.
func (c *Collector) CollectOnce(ctx context.Context) Report {
	start := time.Now()
	report := Report{Timestamp: c.now()}

	if c.cfg.EnableResources && c.resources != nil {
		c.collect(sourceResources, func() error {
			snap := c.resources.Snapshot(ctx)
			report.Performance = &snap
			return nil
		})
	}

	if c.cfg.EnableHealth && c.health != nil {
		c.collect(sourceHealth, func() error {
			status, err := c.health.RunAll(ctx)
			if err != nil {
				return err
			}
			report.Health = &status
			return nil
		})
	}

	if c.cfg.EnableBusiness && c.business != nil {
		c.collect(sourceBusiness, func() error {
			summary := c.business.Summarize(nil)
			report.Business = &summary
			return nil
		})
	}

	if c.cfg.EnableMetrics {
		c.collect(sourceMetrics, func() error {
			snap := c.store.Snapshot()
			report.Metrics = &snap
			return nil
		})
	}

	elapsed := time.Since(start)
	c.store.Inc("metrics_collections_total", "Completed collection cycles", nil)
	c.store.RecordHistogram("metrics_collection_duration_ms", "Collection cycle duration", float64(elapsed)/float64(time.Millisecond), nil)
	c.store.SetGauge("metrics_last_collection_timestamp_ms", "Unix time of the last completed collection", float64(report.Timestamp.UnixMilli()), nil)

	c.logger.Debug().Dur("duration", elapsed).Msg("Collection cycle completed")

	return report
}

func (c *Collector) collect(source string, fn func() error) {
	errFactory := errors.New()

	defer func() {
		if rec := recover(); rec != nil {
			c.recordFailure(source, errFactory.WithData(errors.ErrCollectionFailed, fmt.Sprint(rec)))
		}
	}()

	if err := fn(); err != nil {
		c.recordFailure(source, errFactory.Wrap(errors.ErrCollectionFailed, err))
	}
}

func (c *Collector) recordFailure(source string, err errors.Error) {
	c.logger.ErrorWithCode(err).Str("collector", source).Msg("Collection failed")
	c.store.Inc("metrics_collection_errors_total", "Failed sub-collections", map[string]string{"collector": source})
}

// Start launches the periodic collection timer. With a zero interval it
// logs a warning and does nothing; starting twice is a no-op.
func (c *Collector) Start() {
	if c.cfg.Interval == 0 {
		c.logger.Warn().Msg("Collection interval is zero, collector runs on demand only")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.logger.Warn().Msg("Collector already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.store.SetGauge("metrics_collector_running", "Whether the periodic collector is running", 1, nil)

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info().Dur("interval", c.cfg.Interval).Msg("Collector started")
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.CollectOnce(ctx)
		}
	}
}

// Stop halts the collection timer and every scheduled export, waiting for
// in-flight cycles so that none completes after Stop returns.
func (c *Collector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	exports := c.exports
	c.exports = make(map[uint64]func())
	c.mu.Unlock()

	for _, stop := range exports {
		stop()
	}

	if cancel == nil {
		return
	}

	cancel()
	c.wg.Wait()

	c.store.SetGauge("metrics_collector_running", "Whether the periodic collector is running", 0, nil)
	c.logger.Info().Msg("Collector stopped")
}

func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cancel != nil
}
