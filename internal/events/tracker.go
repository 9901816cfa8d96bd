// Package events keeps a bounded log of business events and derives
// summaries and conversion analytics from it.
package events

import (
	"sync"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"codeberg.org/mutker/pulse/internal/metrics"
	"codeberg.org/mutker/pulse/internal/ring"
)

const DefaultMaxEvents = 10000

type Config struct {
	MaxEvents int
}

func DefaultConfig() Config {
	return Config{MaxEvents: DefaultMaxEvents}
}

func (c Config) Validate() error {
	if c.MaxEvents < 1 {
		return errors.New().WithData(errors.ErrInvalidConfig, struct {
			MaxEvents int
		}{c.MaxEvents})
	}

	return nil
}

type Tracker struct {
	mu     sync.RWMutex
	events *ring.Buffer[Event]
	store  *metrics.Store
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Tracker)

func WithLogger(log logger.Logger) Option {
	return func(t *Tracker) {
		t.logger = log.With("events")
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker returns an empty tracker. store may be nil, in which case no
// metrics are recorded.
func NewTracker(cfg Config, store *metrics.Store, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		events: ring.New[Event](cfg.MaxEvents),
		store:  store,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Track appends an event, evicting the oldest once the log is full, and
// counts it in business_events_total.
func (t *Tracker) Track(name string, opts ...TrackOption) {
	if name == "" {
		t.logger.Warn().Msg("Ignoring event without a name")
		return
	}

	e := Event{Name: name}
	for _, opt := range opts {
		opt(&e)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now()
	}

	t.mu.Lock()
	evicted := t.events.Push(e)
	t.mu.Unlock()

	if evicted {
		t.logger.Debug().Str("event", name).Msg("Event log full, oldest event evicted")
	}

	if t.store != nil {
		labels := map[string]string{"event_name": name}
		t.store.Inc("business_events_total", "Tracked business events", labels)
		if e.Value != nil {
			t.store.RecordHistogram("business_event_value", "Values attached to business events", *e.Value, labels)
		}
	}
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.events.Len()
}

// Events returns the retained events oldest first.
func (t *Tracker) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.events.Items()
}

// ClearOlderThan drops events tracked before cutoff and returns how many
// were removed.
func (t *Tracker) ClearOlderThan(cutoff time.Time) int {
	t.mu.Lock()
	removed := t.events.RemoveIf(func(e Event) bool {
		return e.Timestamp.Before(cutoff)
	})
	t.mu.Unlock()

	if removed > 0 {
		t.logger.Debug().Int("removed", removed).Time("cutoff", cutoff).Msg("Old events cleared")
	}

	return removed
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events.Reset()
}
