package events

import (
	"sort"
	"time"
)

const topEventsLimit = 10

// Summarize aggregates the events inside tr. A nil tr spans the retained
// events.
func (t *Tracker) Summarize(tr *TimeRange) Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var span TimeRange
	if tr != nil {
		span = *tr
	} else if t.events.Len() > 0 {
		span = t.spanLocked()
	} else {
		now := t.now()
		span = TimeRange{Start: now, End: now}
	}

	counts := make(map[string]int)
	users := make(map[string]struct{})
	total := 0

	t.events.Each(func(e Event) bool {
		if tr != nil && !span.Contains(e.Timestamp) {
			return true
		}
		total++
		counts[e.Name]++
		if e.UserID != "" {
			users[e.UserID] = struct{}{}
		}
		return true
	})

	return Summary{
		TotalEvents: total,
		UniqueUsers: len(users),
		TopEvents:   topEvents(counts, topEventsLimit),
		TimeRange:   span,
	}
}

// spanLocked returns the earliest and latest timestamps among retained
// events. WithTimestamp allows out-of-order events, so insertion order is
// not time order.
func (t *Tracker) spanLocked() TimeRange {
	var span TimeRange
	first := true
	t.events.Each(func(e Event) bool {
		if first || e.Timestamp.Before(span.Start) {
			span.Start = e.Timestamp
		}
		if first || e.Timestamp.After(span.End) {
			span.End = e.Timestamp
		}
		first = false
		return true
	})

	return span
}

func topEvents(counts map[string]int, limit int) []EventCount {
	out := make([]EventCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, EventCount{Name: name, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

// ConversionRate returns the percentage of from events whose user produced a
// to event at or after it and within window. from events without a user
// count toward the total but never convert. It is 0 when there are no from
// events.
func (t *Tracker) ConversionRate(from, to string, window time.Duration) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var froms, tos []Event
	t.events.Each(func(e Event) bool {
		if e.Name == from {
			froms = append(froms, e)
		}
		if e.Name == to {
			tos = append(tos, e)
		}
		return true
	})

	if len(froms) == 0 {
		return 0
	}

	matched := 0
	for _, f := range froms {
		if f.UserID == "" {
			continue
		}
		deadline := f.Timestamp.Add(window)
		for _, c := range tos {
			if c.UserID == f.UserID && !c.Timestamp.Before(f.Timestamp) && !c.Timestamp.After(deadline) {
				matched++
				break
			}
		}
	}

	return float64(matched) / float64(len(froms)) * 100
}

// ActiveUsers counts distinct users with at least one event inside tr.
func (t *Tracker) ActiveUsers(tr TimeRange) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make(map[string]struct{})
	t.events.Each(func(e Event) bool {
		if e.UserID != "" && tr.Contains(e.Timestamp) {
			users[e.UserID] = struct{}{}
		}
		return true
	})

	return len(users)
}

// EventsByUser returns the most recent limit events of userID, oldest
// first. A limit of 0 or less returns all of them.
func (t *Tracker) EventsByUser(userID string, limit int) []Event {
	return t.filter(func(e Event) bool { return e.UserID == userID }, limit)
}

// EventsByName returns the most recent limit events named name, oldest
// first. A limit of 0 or less returns all of them.
func (t *Tracker) EventsByName(name string, limit int) []Event {
	return t.filter(func(e Event) bool { return e.Name == name }, limit)
}

func (t *Tracker) filter(match func(Event) bool, limit int) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := []Event{}
	t.events.Each(func(e Event) bool {
		if match(e) {
			out = append(out, e)
		}
		return true
	})

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out
}
