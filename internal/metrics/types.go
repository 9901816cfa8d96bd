package metrics

import (
	"encoding/json"
	"time"

	"codeberg.org/mutker/pulse/internal/export"
)

// Kind is fixed by the first write under a name.
type Kind string

const (
	Counter   Kind = "counter"
	Gauge     Kind = "gauge"
	Histogram Kind = "histogram"
	Summary   Kind = "summary"
)

// Point is a single recorded value. Points are never mutated after append.
type Point struct {
	Value     float64           `json:"value" yaml:"value"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// MarshalJSON writes non-finite values as "NaN", "+Inf" or "-Inf" so that a
// single such write cannot break a whole export.
func (p Point) MarshalJSON() ([]byte, error) {
	type point Point
	return json.Marshal(struct {
		Value export.Float `json:"value"`
		point
	}{
		Value: export.Float(p.Value),
		point: point(p),
	})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	type point Point
	aux := struct {
		Value export.Float `json:"value"`
		*point
	}{point: (*point)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Value = float64(aux.Value)

	return nil
}

// Metric is a copy of one named series, points oldest first.
type Metric struct {
	Name        string  `json:"name" yaml:"name"`
	Kind        Kind    `json:"kind" yaml:"kind"`
	Description string  `json:"description" yaml:"description"`
	Points      []Point `json:"points" yaml:"points"`
}

// Stats aggregates the currently retained points of a metric.
type Stats struct {
	Count int     `json:"count" yaml:"count"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Avg   float64 `json:"avg" yaml:"avg"`
	Sum   float64 `json:"sum" yaml:"sum"`
}

// SnapshotSummary counts metrics by kind.
type SnapshotSummary struct {
	TotalMetrics int `json:"totalMetrics" yaml:"totalMetrics"`
	TotalPoints  int `json:"totalPoints" yaml:"totalPoints"`
	Counters     int `json:"counters" yaml:"counters"`
	Gauges       int `json:"gauges" yaml:"gauges"`
	Histograms   int `json:"histograms" yaml:"histograms"`
	Summaries    int `json:"summaries" yaml:"summaries"`
}

// Snapshot is a point-in-time copy of the whole store.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Metrics   []Metric        `json:"metrics" yaml:"metrics"`
	Summary   SnapshotSummary `json:"summary" yaml:"summary"`
}
