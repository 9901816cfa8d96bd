package health

import (
	"context"
	"time"
)

// Level is the coarse health classification of a component or the whole
// process.
type Level string

const (
	Healthy   Level = "healthy"
	Degraded  Level = "degraded"
	Unhealthy Level = "unhealthy"
)

// LevelForScore maps an aggregate score onto a Level.
func LevelForScore(score int) Level {
	switch {
	case score < 50:
		return Unhealthy
	case score < 80:
		return Degraded
	default:
		return Healthy
	}
}

// RunState is where a single probe run ended up.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateSucceeded RunState = "succeeded"
	StateTimedOut  RunState = "timed_out"
	StateErrored   RunState = "errored"
)

// Result is what a probe check reports.
type Result struct {
	Healthy bool
	Score   int
	Message string
}

// CheckFunc performs one health check. It must respect ctx; a check that
// outlives its deadline is abandoned and scored 0.
type CheckFunc func(ctx context.Context) (Result, error)

type Probe struct {
	Name    string
	Weight  int
	Timeout time.Duration
	Check   CheckFunc
}

// ComponentHealth is the outcome of the latest run of one probe.
type ComponentHealth struct {
	Status     Level     `json:"status" yaml:"status"`
	Score      int       `json:"score" yaml:"score"`
	Message    string    `json:"message,omitempty" yaml:"message,omitempty"`
	State      RunState  `json:"state" yaml:"state"`
	DurationMs float64   `json:"durationMs" yaml:"durationMs"`
	LastCheck  time.Time `json:"lastCheck" yaml:"lastCheck"`
}

// Status is the published result of one RunAll. It is replaced as a whole.
type Status struct {
	Status      Level                      `json:"status" yaml:"status"`
	Score       int                        `json:"score" yaml:"score"`
	Components  map[string]ComponentHealth `json:"components" yaml:"components"`
	LastUpdated time.Time                  `json:"lastUpdated" yaml:"lastUpdated"`
}
