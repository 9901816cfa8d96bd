package collector

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/pulse/internal/events"
	"codeberg.org/mutker/pulse/internal/export"
	"codeberg.org/mutker/pulse/internal/health"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
	"codeberg.org/mutker/pulse/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingResources struct{}

func (panickingResources) Snapshot(context.Context) resource.Snapshot {
	panic("procfs exploded")
}

type failingHealth struct{}

func (failingHealth) RunAll(context.Context) (health.Status, error) {
	return health.Status{}, stderrors.New("registry closed")
}

type fixture struct {
	store    *metrics.Store
	registry *health.Registry
	tracker  *events.Tracker
	sampler  *resource.Sampler
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store, err := metrics.NewStore(metrics.DefaultConfig())
	require.NoError(t, err)
	tracker, err := events.NewTracker(events.DefaultConfig(), store)
	require.NoError(t, err)

	return fixture{
		store:    store,
		registry: health.NewRegistry(store),
		tracker:  tracker,
		sampler:  resource.NewSampler(store, resource.WithProcessSource(nil)),
	}
}

func (f fixture) collector(t *testing.T, cfg Config) *Collector {
	t.Helper()

	c, err := New(cfg, f.store,
		WithResources(f.sampler),
		WithHealth(f.registry),
		WithBusiness(f.tracker),
		WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	return c
}

func manualConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = 0
	return cfg
}

func alwaysHealthy(context.Context) (health.Result, error) {
	return health.Result{Healthy: true, Score: 100}, nil
}

func TestNewValidates(t *testing.T) {
	store, err := metrics.NewStore(metrics.DefaultConfig())
	require.NoError(t, err)

	_, err = New(Config{Interval: -time.Second}, store)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestCollectOnceScenario(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())

	require.NoError(t, f.registry.Register(health.Probe{
		Name:    "always",
		Weight:  1,
		Timeout: time.Second,
		Check:   alwaysHealthy,
	}))
	f.tracker.Track("login", events.WithUser("u1"))

	report := c.CollectOnce(context.Background())

	require.NotNil(t, report.Health)
	assert.Equal(t, health.Healthy, report.Health.Status)
	require.NotNil(t, report.Business)
	assert.Equal(t, 1, report.Business.TotalEvents)
	assert.Equal(t, 1, report.Business.UniqueUsers)
	assert.NotNil(t, report.Performance)
	assert.NotNil(t, report.Metrics)

	status := c.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.TotalCollections)
	assert.Equal(t, report.Timestamp.UnixMilli(), status.LastCollectionTime.UnixMilli())
}

func TestCollectOnceIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	c, err := New(manualConfig(), f.store,
		WithResources(panickingResources{}),
		WithHealth(failingHealth{}),
		WithBusiness(f.tracker))
	require.NoError(t, err)

	report := c.CollectOnce(context.Background())

	assert.Nil(t, report.Performance)
	assert.Nil(t, report.Health)
	assert.NotNil(t, report.Business)
	assert.NotNil(t, report.Metrics)

	m, ok := f.store.Get("metrics_collection_errors_total")
	require.True(t, ok)
	require.Len(t, m.Points, 2)
	assert.Equal(t, map[string]string{"collector": "resources"}, m.Points[0].Labels)
	assert.Equal(t, map[string]string{"collector": "health"}, m.Points[1].Labels)

	total, ok := f.store.Last("metrics_collections_total")
	require.True(t, ok)
	assert.Equal(t, 1.0, total.Value)
}

func TestDisabledComponentsAreNil(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, Config{})

	report := c.CollectOnce(context.Background())
	assert.Nil(t, report.Performance)
	assert.Nil(t, report.Health)
	assert.Nil(t, report.Business)
	assert.Nil(t, report.Metrics)
	assert.False(t, report.Timestamp.IsZero())
}

func TestStartWithZeroIntervalDoesNothing(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())

	c.Start()
	assert.False(t, c.Running())
	c.Stop()
}

func TestStopHaltsCollections(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	c := f.collector(t, cfg)

	c.Start()
	c.Start()
	assert.True(t, c.Running())
	assert.True(t, c.Status().Running)

	require.Eventually(t, func() bool {
		return c.Status().TotalCollections >= 2
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	stoppedAt := time.Now()
	after := c.Status()
	assert.False(t, after.Running)
	assert.False(t, after.LastCollectionTime.After(stoppedAt))

	time.Sleep(50 * time.Millisecond)

	later := c.Status()
	assert.Equal(t, after.TotalCollections, later.TotalCollections)
	assert.Equal(t, after.LastCollectionTime, later.LastCollectionTime)

	c.Stop()
}

func TestExportAll(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())
	f.tracker.Track("login", events.WithUser("u1"))

	out, err := c.ExportAll(context.Background(), export.JSON)
	require.NoError(t, err)

	var doc struct {
		Health struct {
			Status string `json:"status"`
		} `json:"health"`
		Business struct {
			TotalEvents int `json:"totalEvents"`
		} `json:"business"`
		Metrics struct {
			Summary struct {
				TotalMetrics int `json:"totalMetrics"`
			} `json:"summary"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "healthy", doc.Health.Status)
	assert.Equal(t, 1, doc.Business.TotalEvents)
	assert.Positive(t, doc.Metrics.Summary.TotalMetrics)

	prom, err := c.ExportAll(context.Background(), export.Prometheus)
	require.NoError(t, err)
	assert.Contains(t, prom, "# TYPE metrics_collections_total counter")

	csvOut, err := c.ExportAll(context.Background(), export.CSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(csvOut, "name,kind,value,timestamp,labels\n"))

	yamlOut, err := c.ExportAll(context.Background(), export.YAML)
	require.NoError(t, err)
	assert.Contains(t, yamlOut, "totalEvents: 1")
}

func TestExportAllWithNonFiniteValues(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())
	f.store.SetGauge("ratio", "Ratio", math.NaN(), nil)
	f.tracker.Track("score", events.WithValue(math.Inf(1)))

	out, err := c.ExportAll(context.Background(), export.JSON)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.Contains(t, out, `"NaN"`)
	assert.Contains(t, out, `"+Inf"`)

	sink := &recordingSink{}
	stop, err := c.ScheduleExport(5*time.Millisecond, export.JSON, sink)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool { return sink.Len() > 0 }, time.Second, 5*time.Millisecond)

	_, failed := f.store.Get("metrics_collection_errors_total")
	assert.False(t, failed)
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []export.Payload
}

func (s *recordingSink) Write(_ context.Context, p export.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestScheduleExport(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())
	sink := &recordingSink{}

	_, err := c.ScheduleExport(0, export.JSON, sink)
	assert.Error(t, err)
	_, err = c.ScheduleExport(time.Second, export.JSON, nil)
	assert.Error(t, err)

	stop, err := c.ScheduleExport(10*time.Millisecond, export.CSV, sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.Len() >= 2 }, 2*time.Second, 5*time.Millisecond)

	stop()
	n := sink.Len()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, sink.Len())
	stop()

	sink.mu.Lock()
	first := sink.payloads[0]
	sink.mu.Unlock()
	assert.Equal(t, export.CSV, first.Format)
	assert.True(t, strings.HasPrefix(string(first.Body), "name,kind,value,timestamp,labels"))

	exported, ok := f.store.Last("metrics_exports_total")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"format": "csv"}, exported.Labels)
}

func TestStopCancelsScheduledExports(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())
	sink := &recordingSink{}

	_, err := c.ScheduleExport(10*time.Millisecond, export.JSON, sink)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sink.Len() >= 1 }, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	n := sink.Len()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, sink.Len())
}

func TestExportFailuresAreCounted(t *testing.T) {
	f := newFixture(t)
	c := f.collector(t, manualConfig())

	failing := export.SinkFunc(func(context.Context, export.Payload) error {
		return stderrors.New("disk full")
	})
	stop, err := c.ScheduleExport(10*time.Millisecond, export.JSON, failing)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		p, ok := f.store.Last("metrics_collection_errors_total")
		return ok && p.Labels["collector"] == "export"
	}, 2*time.Second, 5*time.Millisecond)
}
