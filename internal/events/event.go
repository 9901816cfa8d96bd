package events

import (
	"encoding/json"
	"maps"
	"time"

	"codeberg.org/mutker/pulse/internal/export"
)

// Event is one tracked business occurrence. Events are immutable once
// tracked.
type Event struct {
	Name       string           `json:"name" yaml:"name"`
	Value      *float64         `json:"value,omitempty" yaml:"value,omitempty"`
	Properties map[string]Value `json:"properties,omitempty" yaml:"properties,omitempty"`
	UserID     string           `json:"userId,omitempty" yaml:"userId,omitempty"`
	SessionID  string           `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	Timestamp  time.Time        `json:"timestamp" yaml:"timestamp"`
}

// MarshalJSON writes a non-finite Value as "NaN", "+Inf" or "-Inf".
func (e Event) MarshalJSON() ([]byte, error) {
	type event Event
	return json.Marshal(struct {
		Value *export.Float `json:"value,omitempty"`
		event
	}{
		Value: (*export.Float)(e.Value),
		event: event(e),
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type event Event
	aux := struct {
		Value *export.Float `json:"value,omitempty"`
		*event
	}{event: (*event)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Value = (*float64)(aux.Value)

	return nil
}

// TrackOption sets optional fields of a tracked event.
type TrackOption func(*Event)

func WithValue(v float64) TrackOption {
	return func(e *Event) {
		e.Value = &v
	}
}

// WithProperties merges props into the event's properties.
func WithProperties(props map[string]Value) TrackOption {
	return func(e *Event) {
		if e.Properties == nil {
			e.Properties = make(map[string]Value, len(props))
		}
		maps.Copy(e.Properties, props)
	}
}

func WithUser(userID string) TrackOption {
	return func(e *Event) {
		e.UserID = userID
	}
}

func WithSession(sessionID string) TrackOption {
	return func(e *Event) {
		e.SessionID = sessionID
	}
}

// WithTimestamp overrides the tracking time.
func WithTimestamp(ts time.Time) TrackOption {
	return func(e *Event) {
		e.Timestamp = ts
	}
}

type TimeRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether ts falls within the range, bounds included.
func (r TimeRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

type EventCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

type Summary struct {
	TotalEvents int          `json:"totalEvents" yaml:"totalEvents"`
	UniqueUsers int          `json:"uniqueUsers" yaml:"uniqueUsers"`
	TopEvents   []EventCount `json:"topEvents" yaml:"topEvents"`
	TimeRange   TimeRange    `json:"timeRange" yaml:"timeRange"`
}
