package main

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/pulse/internal/collector"
	"codeberg.org/mutker/pulse/internal/config"
	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/events"
	"codeberg.org/mutker/pulse/internal/gpu"
	"codeberg.org/mutker/pulse/internal/health"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
	"codeberg.org/mutker/pulse/internal/resource"
	_ "github.com/mattn/go-sqlite3"
)

// engine wires the observability components for one process.
type engine struct {
	store     *metrics.Store
	tracker   *events.Tracker
	registry  *health.Registry
	sampler   *resource.Sampler
	collector *collector.Collector
	gpu       *gpu.GPU
	dbs       []*sql.DB
	logger    logger.Logger
}

func newEngine(cfg *config.Config, log logger.Logger) (*engine, error) {
	e := &engine{logger: log}

	store, err := metrics.NewStore(cfg.MetricsConfig(), metrics.WithLogger(log))
	if err != nil {
		return nil, err
	}
	e.store = store

	e.tracker, err = events.NewTracker(cfg.EventsConfig(), store, events.WithLogger(log))
	if err != nil {
		return nil, err
	}

	e.registry = health.NewRegistry(store, health.WithLogger(log))
	for _, pc := range cfg.Probes {
		probe, err := e.buildProbe(pc)
		if err != nil {
			e.close()
			return nil, err
		}
		if err := e.registry.Register(probe); err != nil {
			e.close()
			return nil, err
		}
	}

	samplerOpts := []resource.Option{resource.WithLogger(log)}
	if cfg.EnableGPU {
		dev, err := gpu.New(log)
		if err != nil {
			log.Warn().Err(err).Msg("GPU unavailable, continuing without GPU metrics")
		} else {
			e.gpu = dev
			samplerOpts = append(samplerOpts, resource.WithGPU(dev))
		}
	}
	e.sampler = resource.NewSampler(store, samplerOpts...)

	e.collector, err = collector.New(cfg.CollectorConfig(), store,
		collector.WithResources(e.sampler),
		collector.WithHealth(e.registry),
		collector.WithBusiness(e.tracker),
		collector.WithLogger(log),
	)
	if err != nil {
		e.close()
		return nil, err
	}

	return e, nil
}

func (e *engine) buildProbe(pc config.ProbeConfig) (health.Probe, error) {
	switch pc.Kind {
	case config.ProbeHTTP:
		return health.HTTPProbe(pc.Name, pc.URL, pc.Weight, pc.Timeout, nil), nil
	case config.ProbeMemory:
		return health.MemoryProbe(pc.Name, pc.Weight, pc.Timeout, nil), nil
	case config.ProbeSQLite:
		db, err := sql.Open("sqlite3", pc.Path)
		if err != nil {
			return health.Probe{}, errors.New().Wrap(errors.ErrInvalidProbe, err)
		}
		e.dbs = append(e.dbs, db)
		return health.PingProbe(pc.Name, pc.Weight, pc.Timeout, func(ctx context.Context) error {
			return db.PingContext(ctx)
		}), nil
	default:
		return health.Probe{}, errors.New().WithData(errors.ErrInvalidProbe, pc.Kind)
	}
}

// close releases probe databases and the GPU. The collector and sampler are
// stopped by their owners.
func (e *engine) close() {
	for _, db := range e.dbs {
		if err := db.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to close probe database")
		}
	}
	e.dbs = nil

	if e.gpu != nil {
		if err := e.gpu.Shutdown(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to shut down GPU")
		}
		e.gpu = nil
	}
}
