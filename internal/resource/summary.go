package resource

import (
	"fmt"
	"time"
)

// Thresholds above which Summarize reports a warning.
type Thresholds struct {
	HeapUsagePercent float64
	CPUPercent       float64
	SchedulerDelay   time.Duration
	Goroutines       int
	GCPause          time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HeapUsagePercent: 90,
		CPUPercent:       80,
		SchedulerDelay:   100 * time.Millisecond,
		Goroutines:       10000,
		GCPause:          100 * time.Millisecond,
	}
}

// Evaluate applies t to snap. Load average is compared against the CPU count
// recorded in the snapshot.
func Evaluate(snap Snapshot, t Thresholds) Summary {
	s := Summary{
		Status:          StatusHealthy,
		Issues:          []string{},
		Recommendations: []string{},
	}

	add := func(issue, recommendation string) {
		s.Issues = append(s.Issues, issue)
		s.Recommendations = append(s.Recommendations, recommendation)
	}

	if snap.Memory.HeapUsagePercent > t.HeapUsagePercent {
		add(fmt.Sprintf("High heap usage: %.1f%%", snap.Memory.HeapUsagePercent),
			"Investigate memory growth or raise the memory limit")
	}

	if snap.CPU.UsagePercent > t.CPUPercent {
		add(fmt.Sprintf("High CPU usage: %.1f%%", snap.CPU.UsagePercent),
			"Profile CPU hot paths or scale out")
	}

	if snap.Scheduler.DelayMs > float64(t.SchedulerDelay)/float64(time.Millisecond) {
		add(fmt.Sprintf("High scheduler delay: %.1fms", snap.Scheduler.DelayMs),
			"Look for goroutines starving the scheduler with long CPU-bound work")
	}

	if snap.Scheduler.Goroutines > t.Goroutines {
		add(fmt.Sprintf("High goroutine count: %d", snap.Scheduler.Goroutines),
			"Check for leaked goroutines")
	}

	if snap.CPU.NumCPU > 0 && snap.CPU.LoadAverage.Load1 > float64(snap.CPU.NumCPU) {
		add(fmt.Sprintf("Load average %.2f exceeds CPU count %d", snap.CPU.LoadAverage.Load1, snap.CPU.NumCPU),
			"Reduce system load or add CPU capacity")
	}

	if snap.GC.LastPauseMs > float64(t.GCPause)/float64(time.Millisecond) {
		add(fmt.Sprintf("Long GC pause: %.1fms", snap.GC.LastPauseMs),
			"Reduce allocation rate or tune GOGC")
	}

	if len(s.Issues) > 0 {
		s.Status = StatusWarning
	}

	return s
}
