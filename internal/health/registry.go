// Package health runs weighted health probes concurrently and aggregates them
// into a single score.
package health

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	MinWeight = 1
	MaxWeight = 10
)

type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe

	status atomic.Pointer[Status]
	runSeq atomic.Uint64

	// publishMu orders publication so a run that started earlier never
	// replaces the status of a run that started later.
	publishMu    sync.Mutex
	publishedSeq uint64
	store  *metrics.Store
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Registry)

func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		r.logger = log.With("health")
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry returns a registry whose initial status is healthy with score
// 100 and no components. store may be nil.
func NewRegistry(store *metrics.Store, opts ...Option) *Registry {
	r := &Registry{
		probes: make(map[string]Probe),
		store:  store,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.status.Store(&Status{
		Status:      Healthy,
		Score:       100,
		Components:  map[string]ComponentHealth{},
		LastUpdated: r.now(),
	})

	return r
}

// Register adds a probe. Invalid probes and duplicate names are rejected.
func (r *Registry) Register(p Probe) error {
	errFactory := errors.New()

	switch {
	case p.Name == "":
		return errFactory.WithMessage(errors.ErrInvalidProbe, "probe name is empty")
	case p.Weight < MinWeight || p.Weight > MaxWeight:
		return errFactory.WithMessage(errors.ErrInvalidProbe,
			fmt.Sprintf("probe %q weight %d outside %d-%d", p.Name, p.Weight, MinWeight, MaxWeight))
	case p.Timeout <= 0:
		return errFactory.WithMessage(errors.ErrInvalidProbe,
			fmt.Sprintf("probe %q timeout must be positive", p.Name))
	case p.Check == nil:
		return errFactory.WithMessage(errors.ErrInvalidProbe,
			fmt.Sprintf("probe %q has no check", p.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.probes[p.Name]; exists {
		return errFactory.WithData(errors.ErrProbeExists, p.Name)
	}
	r.probes[p.Name] = p

	r.logger.Debug().
		Str("probe", p.Name).
		Int("weight", p.Weight).
		Dur("timeout", p.Timeout).
		Msg("Health probe registered")

	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.probes[name]; !ok {
		return false
	}
	delete(r.probes, name)

	return true
}

// Probes returns the registered probe names in sorted order.
func (r *Registry) Probes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// RunAll runs every registered probe concurrently, each bounded by its own
// timeout, and publishes the aggregate status. Probe failures never surface
// as errors. If ctx ends before all probes have resolved, the run is
// discarded, the previous status stays published and ctx.Err() is returned.
// Overlapping runs publish in start order: a run finishing after a later-
// started one is dropped and returns the newer status.
func (r *Registry) RunAll(ctx context.Context) (Status, error) {
	seq := r.runSeq.Add(1)

	r.mu.RLock()
	probes := make([]Probe, 0, len(r.probes))
	for _, p := range r.probes {
		probes = append(probes, p)
	}
	r.mu.RUnlock()

	sort.Slice(probes, func(i, j int) bool { return probes[i].Name < probes[j].Name })

	results := make([]ComponentHealth, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = r.runProbe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Debug().Err(err).Msg("Health run discarded")
		return r.CurrentStatus(), err
	}

	var weighted, weights float64
	components := make(map[string]ComponentHealth, len(probes))
	for i, p := range probes {
		ch := results[i]
		components[p.Name] = ch
		weighted += float64(ch.Score * p.Weight)
		weights += float64(p.Weight)
		r.recordComponent(p.Name, ch)
	}

	score := 100
	if weights > 0 {
		score = int(math.Round(weighted / weights))
	}

	status := &Status{
		Status:      LevelForScore(score),
		Score:       score,
		Components:  components,
		LastUpdated: r.now(),
	}

	r.publishMu.Lock()
	if seq < r.publishedSeq {
		r.publishMu.Unlock()
		r.logger.Debug().Uint64("run", seq).Msg("Health run superseded by a newer run")
		return r.CurrentStatus(), nil
	}
	r.publishedSeq = seq
	r.status.Store(status)
	if r.store != nil {
		r.store.SetGauge("health_score", "Weighted aggregate health score", float64(score), nil)
	}
	r.publishMu.Unlock()

	r.logger.Debug().
		Str("status", string(status.Status)).
		Int("score", score).
		Int("probes", len(probes)).
		Msg("Health checks completed")

	return copyStatus(status), nil
}

type outcome struct {
	res Result
	err error
}

func (r *Registry) runProbe(ctx context.Context, p Probe) ComponentHealth {
	errFactory := errors.New()

	pctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: errFactory.WithData(errors.ErrProbeFailed, fmt.Sprint(rec))}
			}
		}()

		res, err := p.Check(pctx)
		done <- outcome{res: res, err: err}
	}()

	ch := ComponentHealth{State: StateRunning}

	select {
	case o := <-done:
		switch {
		case o.err != nil:
			ch.State = StateErrored
			ch.Status = Unhealthy
			ch.Message = o.err.Error()
			r.logger.Warn().Str("probe", p.Name).Err(o.err).Msg("Health probe failed")
		default:
			ch.State = StateSucceeded
			ch.Score = clampScore(o.res.Score)
			ch.Message = o.res.Message
			ch.Status = Healthy
			if !o.res.Healthy {
				ch.Status = Unhealthy
			}
		}
	case <-pctx.Done():
		err := errFactory.WithMessage(errors.ErrProbeTimeout,
			fmt.Sprintf("probe %q timed out after %s", p.Name, p.Timeout))
		ch.State = StateTimedOut
		ch.Status = Unhealthy
		ch.Message = err.Error()
		r.logger.Warn().Str("probe", p.Name).Dur("timeout", p.Timeout).Msg("Health probe timed out")
	}

	ch.DurationMs = float64(time.Since(start)) / float64(time.Millisecond)
	ch.LastCheck = r.now()

	return ch
}

func (r *Registry) recordComponent(name string, ch ComponentHealth) {
	if r.store == nil {
		return
	}

	labels := map[string]string{"component": name}
	r.store.SetGauge("health_check_score", "Health probe score", float64(ch.Score), labels)
	r.store.RecordHistogram("health_check_duration_ms", "Health probe duration", ch.DurationMs, labels)
	r.store.Inc("health_checks_total", "Health probe runs", labels)
	if ch.Status != Healthy {
		r.store.Inc("health_check_failures_total", "Health probe runs that were not healthy", labels)
	}
}

// CurrentStatus returns the latest published status.
func (r *Registry) CurrentStatus() Status {
	return copyStatus(r.status.Load())
}

func (r *Registry) IsHealthy() bool {
	return r.status.Load().Status == Healthy
}

// HTTPStatus maps the current status onto a liveness response code.
func (r *Registry) HTTPStatus() int {
	if r.status.Load().Status == Unhealthy {
		return http.StatusServiceUnavailable
	}

	return http.StatusOK
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}

	return score
}

func copyStatus(s *Status) Status {
	out := *s
	out.Components = make(map[string]ComponentHealth, len(s.Components))
	for k, v := range s.Components {
		out.Components[k] = v
	}

	return out
}
