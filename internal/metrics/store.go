// Package metrics implements the in-memory metric store every other
// component writes into. Each metric name maps to a capacity-bounded series of
// points; the oldest point is evicted once the series is full.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/ring"
)

type series struct {
	name        string
	kind        Kind
	description string
	points      *ring.Buffer[Point]
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	cfg    Config
	series map[string]*series
	// totals holds the lifetime value of each counter series keyed by name
	// and label set, independent of point eviction.
	totals map[string]float64
	now    func() time.Time
	logger logger.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		s.logger = log.With("metrics")
	}
}

// WithClock replaces time.Now for point timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(cfg Config, opts ...Option) (*Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	s := &Store{
		cfg:    cfg,
		series: make(map[string]*series),
		totals: make(map[string]float64),
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug().
		Int("max_points", cfg.MaxPoints).
		Msg("Metric store initialized")

	return s, nil
}

// IncrCounter adds delta to the counter series identified by name and labels
// and appends the new total as a point.
func (s *Store) IncrCounter(name, description string, delta float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey(name, labels)
	total := s.totals[key] + delta
	s.totals[key] = total

	s.appendLocked(name, description, Counter, total, labels)
}

// Inc is IncrCounter with a delta of one.
func (s *Store) Inc(name, description string, labels map[string]string) {
	s.IncrCounter(name, description, 1, labels)
}

func (s *Store) SetGauge(name, description string, value float64, labels map[string]string) {
	s.record(name, description, Gauge, value, labels)
}

func (s *Store) RecordHistogram(name, description string, value float64, labels map[string]string) {
	s.record(name, description, Histogram, value, labels)
}

func (s *Store) RecordSummary(name, description string, value float64, labels map[string]string) {
	s.record(name, description, Summary, value, labels)
}

func (s *Store) record(name, description string, kind Kind, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(name, description, kind, value, labels)
}

func (s *Store) appendLocked(name, description string, kind Kind, value float64, labels map[string]string) {
	sr, ok := s.series[name]
	if !ok {
		sr = &series{
			name:        name,
			kind:        kind,
			description: description,
			points:      ring.New[Point](s.cfg.MaxPoints),
		}
		s.series[name] = sr
	} else if sr.kind != kind {
		s.logger.Debug().
			Str("metric", name).
			Str("kind", string(sr.kind)).
			Str("write_kind", string(kind)).
			Msg("Write kind differs from registered kind")
	}

	sr.points.Push(Point{
		Value:     value,
		Timestamp: s.now(),
		Labels:    copyLabels(labels),
	})
}

// Get returns a copy of the named metric.
func (s *Store) Get(name string) (Metric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[name]
	if !ok {
		return Metric{}, false
	}

	return sr.copy(), true
}

// Last returns the newest point of the named metric.
func (s *Store) Last(name string) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[name]
	if !ok {
		return Point{}, false
	}

	return sr.points.Last()
}

// All returns copies of every metric sorted by name.
func (s *Store) All() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.allLocked()
}

func (s *Store) allLocked() []Metric {
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Metric, 0, len(names))
	for _, name := range names {
		out = append(out, s.series[name].copy())
	}

	return out
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.allLocked()
	snap := Snapshot{
		Timestamp: s.now(),
		Metrics:   all,
	}

	snap.Summary.TotalMetrics = len(all)
	for _, m := range all {
		snap.Summary.TotalPoints += len(m.Points)
		switch m.Kind {
		case Counter:
			snap.Summary.Counters++
		case Gauge:
			snap.Summary.Gauges++
		case Histogram:
			snap.Summary.Histograms++
		case Summary:
			snap.Summary.Summaries++
		}
	}

	return snap
}

// Clear drops every metric and counter total.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = make(map[string]*series)
	s.totals = make(map[string]float64)
}

// ClearOne drops a single metric and reports whether it existed.
func (s *Store) ClearOne(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[name]; !ok {
		return false
	}
	delete(s.series, name)

	prefix := name + keySep
	for key := range s.totals {
		if strings.HasPrefix(key, prefix) {
			delete(s.totals, key)
		}
	}

	return true
}

// Stats aggregates the retained points of name.
func (s *Store) Stats(name string) (Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[name]
	if !ok || sr.points.Len() == 0 {
		return Stats{}, false
	}

	st := Stats{Count: sr.points.Len()}
	first := true
	sr.points.Each(func(p Point) bool {
		if first {
			st.Min, st.Max = p.Value, p.Value
			first = false
		}
		st.Min = min(st.Min, p.Value)
		st.Max = max(st.Max, p.Value)
		st.Sum += p.Value
		return true
	})
	st.Avg = st.Sum / float64(st.Count)

	return st, true
}

// Len reports how many metric names are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.series)
}

func (sr *series) copy() Metric {
	return Metric{
		Name:        sr.name,
		Kind:        sr.kind,
		Description: sr.description,
		Points:      sr.points.Items(),
	}
}

const keySep = "\x00"

// seriesKey identifies a counter series by name and sorted label pairs.
func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name + keySep
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteString(keySep)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteString(keySep)
	}

	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}

	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}

	return out
}
