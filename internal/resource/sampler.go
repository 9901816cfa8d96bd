// Package resource samples process resource usage (CPU, memory, scheduler
// latency, garbage collection and optionally the GPU) and records it into the
// metric store.
package resource

import (
	"context"
	"runtime"
	rtmetrics "runtime/metrics"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/gpu"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
)

const (
	cpuTotalMetric = "/cpu/classes/total:cpu-seconds"
	cpuIdleMetric  = "/cpu/classes/idle:cpu-seconds"
	bytesPerMiB    = 1 << 20
)

type Sampler struct {
	store      *metrics.Store
	proc       ProcessSource
	procSet    bool
	gpu        gpu.Source
	thresholds Thresholds
	logger     logger.Logger
	now        func() time.Time
	started    time.Time

	// mu guards the delta state carried between readings. Timer samples and
	// on-demand snapshots keep separate baselines so neither shortens the
	// other's window.
	mu           sync.Mutex
	timed        baseline
	onDemand     baseline
	recordedGC   uint32
	recordedInit bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	latest atomic.Pointer[Snapshot]
}

// baseline holds the cumulative counters of the previous reading.
type baseline struct {
	cpu   float64
	wall  time.Time
	idle  float64
	total float64
}

type Option func(*Sampler)

func WithLogger(log logger.Logger) Option {
	return func(s *Sampler) {
		s.logger = log.With("resource")
	}
}

// WithProcessSource replaces the procfs reader. A nil source disables process
// CPU, RSS and load readings.
func WithProcessSource(src ProcessSource) Option {
	return func(s *Sampler) {
		s.proc = src
		s.procSet = true
	}
}

// WithGPU attaches a GPU source; its readings are recorded as gpu_* gauges.
func WithGPU(src gpu.Source) Option {
	return func(s *Sampler) {
		s.gpu = src
	}
}

func WithThresholds(t Thresholds) Option {
	return func(s *Sampler) {
		s.thresholds = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

func NewSampler(store *metrics.Store, opts ...Option) *Sampler {
	s := &Sampler{
		store:      store,
		thresholds: DefaultThresholds(),
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.procSet {
		src, err := NewProcSource()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Process counters unavailable")
		} else {
			s.proc = src
		}
	}

	s.started = s.now()

	return s
}

// Snapshot reads every source once. Sources that are unavailable contribute
// zero values and never fail the reading. CPU usage and utilization are
// measured since the previous Snapshot call; timer samples are unaffected.
func (s *Sampler) Snapshot(ctx context.Context) Snapshot {
	return s.read(ctx, &s.onDemand)
}

func (s *Sampler) read(ctx context.Context, b *baseline) Snapshot {
	now := s.now()
	snap := Snapshot{
		Timestamp: now,
		CPU:       CPU{NumCPU: runtime.NumCPU()},
	}

	snap.Scheduler.DelayMs = float64(measureSchedulerDelay(ctx)) / float64(time.Millisecond)
	snap.Scheduler.Goroutines = runtime.NumGoroutine()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapTotal := ms.HeapSys - ms.HeapReleased
	snap.Memory = Memory{
		HeapUsedBytes:  ms.HeapAlloc,
		HeapTotalBytes: heapTotal,
		ExternalBytes:  ms.Sys - ms.HeapSys,
	}
	if heapTotal > 0 {
		snap.Memory.HeapUsagePercent = float64(ms.HeapAlloc) / float64(heapTotal) * 100
	}
	snap.GC = GC{
		Collections:  ms.NumGC,
		TotalPauseMs: float64(ms.PauseTotalNs) / float64(time.Millisecond),
	}
	if ms.NumGC > 0 {
		snap.GC.LastPauseMs = float64(ms.PauseNs[(ms.NumGC+255)%256]) / float64(time.Millisecond)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Scheduler.Utilization = s.utilizationLocked(b)

	startTime := s.started
	if s.proc != nil {
		if ps, err := s.proc.Process(); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to read process stats")
		} else {
			snap.Memory.ResidentBytes = ps.ResidentBytes
			snap.CPU.UsagePercent = s.cpuPercentLocked(b, ps.CPUSeconds, now, snap.CPU.NumCPU)
			if !ps.StartTime.IsZero() {
				startTime = ps.StartTime
			}
		}

		if load, err := s.proc.LoadAverage(); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to read load average")
		} else {
			snap.CPU.LoadAverage = load
		}
	}
	snap.UptimeSeconds = now.Sub(startTime).Seconds()

	if s.gpu != nil {
		if stats, err := s.gpu.Sample(); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to sample GPU")
		} else {
			snap.GPU = &stats
		}
	}

	return snap
}

// cpuPercentLocked converts process CPU seconds into a percentage of total
// machine capacity since the previous reading against b, or since the
// sampler was created on the first one.
func (s *Sampler) cpuPercentLocked(b *baseline, cpuSeconds float64, now time.Time, numCPU int) float64 {
	prevCPU, prevWall := b.cpu, b.wall
	if prevWall.IsZero() {
		prevWall = s.started
	}
	b.cpu, b.wall = cpuSeconds, now

	wall := now.Sub(prevWall).Seconds()
	if wall <= 0 || numCPU <= 0 {
		return 0
	}

	pct := (cpuSeconds - prevCPU) / wall / float64(numCPU) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}

	return pct
}

// utilizationLocked reports the busy share of runtime CPU time since the
// previous reading against b. It returns 0 when the runtime does not expose
// CPU classes.
func (s *Sampler) utilizationLocked(b *baseline) float64 {
	samples := []rtmetrics.Sample{{Name: cpuTotalMetric}, {Name: cpuIdleMetric}}
	rtmetrics.Read(samples)

	for _, sample := range samples {
		if sample.Value.Kind() != rtmetrics.KindFloat64 {
			s.logger.Debug().
				Err(errors.New().WithData(errors.ErrSamplerUnavailable, sample.Name)).
				Msg("Scheduler utilization unavailable")
			return 0
		}
	}

	total, idle := samples[0].Value.Float64(), samples[1].Value.Float64()
	dTotal, dIdle := total-b.total, idle-b.idle
	b.total, b.idle = total, idle

	if dTotal <= 0 {
		return 0
	}

	u := 1 - dIdle/dTotal
	switch {
	case u < 0:
		return 0
	case u > 1:
		return 1
	}

	return u
}

// measureSchedulerDelay times how long a freshly spawned goroutine waits
// before it first runs.
func measureSchedulerDelay(ctx context.Context) time.Duration {
	start := time.Now()
	ran := make(chan time.Time, 1)
	go func() {
		ran <- time.Now()
	}()

	select {
	case t := <-ran:
		return t.Sub(start)
	case <-ctx.Done():
		return 0
	}
}

// Sample takes a snapshot and records it into the metric store.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	snap := s.read(ctx, &s.timed)
	s.record(snap)
	s.latest.Store(&snap)

	return snap
}

func (s *Sampler) record(snap Snapshot) {
	st := s.store

	st.SetGauge("cpu_usage_percent", "Process CPU usage as a share of all cores", snap.CPU.UsagePercent, nil)
	st.SetGauge("cpu_load_average_1m", "System load average over 1 minute", snap.CPU.LoadAverage.Load1, nil)
	st.SetGauge("cpu_load_average_5m", "System load average over 5 minutes", snap.CPU.LoadAverage.Load5, nil)
	st.SetGauge("cpu_load_average_15m", "System load average over 15 minutes", snap.CPU.LoadAverage.Load15, nil)

	st.SetGauge("memory_resident_bytes", "Resident set size", float64(snap.Memory.ResidentBytes), nil)
	st.SetGauge("memory_heap_used_bytes", "Heap bytes in use", float64(snap.Memory.HeapUsedBytes), nil)
	st.SetGauge("memory_heap_total_bytes", "Heap bytes obtained from the OS and not released", float64(snap.Memory.HeapTotalBytes), nil)
	st.SetGauge("memory_external_bytes", "Runtime memory outside the heap", float64(snap.Memory.ExternalBytes), nil)
	st.SetGauge("memory_heap_usage_percent", "Heap used as a share of heap total", snap.Memory.HeapUsagePercent, nil)

	st.SetGauge("event_loop_delay_ms", "Goroutine scheduling delay", snap.Scheduler.DelayMs, nil)
	st.SetGauge("event_loop_utilization", "Busy share of runtime CPU time", snap.Scheduler.Utilization, nil)
	st.SetGauge("goroutines_count", "Number of goroutines", float64(snap.Scheduler.Goroutines), nil)
	st.SetGauge("process_uptime_seconds", "Process uptime", snap.UptimeSeconds, nil)

	s.mu.Lock()
	var newGC uint32
	if s.recordedInit {
		newGC = snap.GC.Collections - s.recordedGC
	} else {
		newGC = snap.GC.Collections
		s.recordedInit = true
	}
	s.recordedGC = snap.GC.Collections
	s.mu.Unlock()

	if newGC > 0 {
		st.IncrCounter("gc_collections_total", "Completed garbage collection cycles", float64(newGC), nil)
		st.RecordHistogram("gc_pause_duration_ms", "Most recent garbage collection pause", snap.GC.LastPauseMs, nil)
	}

	if g := snap.GPU; g != nil {
		labels := map[string]string{"gpu": g.Name}
		st.SetGauge("gpu_utilization_percent", "GPU utilization", g.UtilizationPercent, labels)
		st.SetGauge("gpu_memory_used_bytes", "GPU memory in use", float64(g.MemoryUsedBytes), labels)
		st.SetGauge("gpu_memory_total_bytes", "GPU memory installed", float64(g.MemoryTotalBytes), labels)
		st.SetGauge("gpu_temperature_celsius", "GPU core temperature", float64(g.Temperature), labels)
		st.SetGauge("gpu_power_watts", "GPU power draw", g.PowerWatts, labels)
	}

	s.logger.Debug().
		Float64("cpu_percent", snap.CPU.UsagePercent).
		Uint64("heap_mib", snap.Memory.HeapUsedBytes/bytesPerMiB).
		Int("goroutines", snap.Scheduler.Goroutines).
		Msg("Resource sample recorded")
}

// Start samples immediately and then on every interval tick. Starting a
// running sampler logs a warning and does nothing.
func (s *Sampler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval.String())
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		s.logger.Warn().Msg("Resource sampler already running")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go s.loop(ctx, interval, done)

	s.logger.Info().Dur("interval", interval).Msg("Resource sampler started")

	return nil
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sample(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample(ctx)
		}
	}
}

// Stop halts the loop and waits for an in-flight sample to finish.
func (s *Sampler) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info().Msg("Resource sampler stopped")
}

func (s *Sampler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.cancel != nil
}

// Summarize evaluates the most recent recorded sample, taking a fresh
// snapshot when none exists yet.
func (s *Sampler) Summarize() Summary {
	if snap := s.latest.Load(); snap != nil {
		return Evaluate(*snap, s.thresholds)
	}

	return Evaluate(s.Snapshot(context.Background()), s.thresholds)
}
