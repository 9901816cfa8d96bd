package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		issues int
		match  string
	}{
		{
			name:   "quiet process",
			snap:   Snapshot{CPU: CPU{NumCPU: 4, UsagePercent: 10}, Memory: Memory{HeapUsagePercent: 40}},
			issues: 0,
		},
		{
			name:   "heap pressure",
			snap:   Snapshot{Memory: Memory{HeapUsagePercent: 95}},
			issues: 1,
			match:  "heap",
		},
		{
			name:   "cpu pressure",
			snap:   Snapshot{CPU: CPU{UsagePercent: 85}},
			issues: 1,
			match:  "CPU",
		},
		{
			name:   "scheduler delay",
			snap:   Snapshot{Scheduler: Scheduler{DelayMs: 150}},
			issues: 1,
			match:  "scheduler",
		},
		{
			name:   "goroutine leak",
			snap:   Snapshot{Scheduler: Scheduler{Goroutines: 20000}},
			issues: 1,
			match:  "goroutine",
		},
		{
			name:   "overloaded host",
			snap:   Snapshot{CPU: CPU{NumCPU: 2, LoadAverage: LoadAverage{Load1: 3}}},
			issues: 1,
			match:  "Load average",
		},
		{
			name:   "gc pause",
			snap:   Snapshot{GC: GC{LastPauseMs: 250}},
			issues: 1,
			match:  "GC pause",
		},
		{
			name: "everything",
			snap: Snapshot{
				CPU:       CPU{NumCPU: 1, UsagePercent: 99, LoadAverage: LoadAverage{Load1: 8}},
				Memory:    Memory{HeapUsagePercent: 99},
				Scheduler: Scheduler{DelayMs: 500, Goroutines: 50000},
				GC:        GC{LastPauseMs: 500},
			},
			issues: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Evaluate(tt.snap, DefaultThresholds())

			assert.Len(t, summary.Issues, tt.issues)
			assert.Len(t, summary.Recommendations, tt.issues)
			if tt.issues == 0 {
				assert.Equal(t, StatusHealthy, summary.Status)
				return
			}
			assert.Equal(t, StatusWarning, summary.Status)
			if tt.match != "" {
				assert.Contains(t, summary.Issues[0], tt.match)
			}
		})
	}
}
