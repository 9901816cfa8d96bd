package resource

import (
	"time"

	"codeberg.org/mutker/pulse/internal/gpu"
)

type CPU struct {
	UsagePercent float64     `json:"usagePercent" yaml:"usagePercent"`
	LoadAverage  LoadAverage `json:"loadAverage" yaml:"loadAverage"`
	NumCPU       int         `json:"numCpu" yaml:"numCpu"`
}

type Memory struct {
	ResidentBytes    uint64  `json:"residentBytes" yaml:"residentBytes"`
	HeapUsedBytes    uint64  `json:"heapUsedBytes" yaml:"heapUsedBytes"`
	HeapTotalBytes   uint64  `json:"heapTotalBytes" yaml:"heapTotalBytes"`
	ExternalBytes    uint64  `json:"externalBytes" yaml:"externalBytes"`
	HeapUsagePercent float64 `json:"heapUsagePercent" yaml:"heapUsagePercent"`
}

// Scheduler holds the Go runtime equivalents of event-loop lag and
// utilization.
type Scheduler struct {
	DelayMs     float64 `json:"delayMs" yaml:"delayMs"`
	Utilization float64 `json:"utilization" yaml:"utilization"`
	Goroutines  int     `json:"goroutines" yaml:"goroutines"`
}

type GC struct {
	Collections  uint32  `json:"collections" yaml:"collections"`
	LastPauseMs  float64 `json:"lastPauseMs" yaml:"lastPauseMs"`
	TotalPauseMs float64 `json:"totalPauseMs" yaml:"totalPauseMs"`
}

// Snapshot is one synchronous reading of the process.
type Snapshot struct {
	Timestamp     time.Time  `json:"timestamp" yaml:"timestamp"`
	CPU           CPU        `json:"cpu" yaml:"cpu"`
	Memory        Memory     `json:"memory" yaml:"memory"`
	Scheduler     Scheduler  `json:"scheduler" yaml:"scheduler"`
	GC            GC         `json:"gc" yaml:"gc"`
	UptimeSeconds float64    `json:"uptimeSeconds" yaml:"uptimeSeconds"`
	GPU           *gpu.Stats `json:"gpu,omitempty" yaml:"gpu,omitempty"`
}

type SummaryStatus string

const (
	StatusHealthy SummaryStatus = "healthy"
	StatusWarning SummaryStatus = "warning"
)

type Summary struct {
	Status          SummaryStatus `json:"status" yaml:"status"`
	Issues          []string      `json:"issues" yaml:"issues"`
	Recommendations []string      `json:"recommendations" yaml:"recommendations"`
}
