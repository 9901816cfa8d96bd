package resource

import (
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"github.com/prometheus/procfs"
)

// ProcessStats are the kernel-side counters of this process.
type ProcessStats struct {
	CPUSeconds    float64
	ResidentBytes uint64
	StartTime     time.Time
}

// LoadAverage is the system run-queue average over 1, 5 and 15 minutes.
type LoadAverage struct {
	Load1  float64 `json:"load1" yaml:"load1"`
	Load5  float64 `json:"load5" yaml:"load5"`
	Load15 float64 `json:"load15" yaml:"load15"`
}

// ProcessSource reads process and system counters from the platform.
type ProcessSource interface {
	Process() (ProcessStats, error)
	LoadAverage() (LoadAverage, error)
}

type procSource struct {
	fs procfs.FS
}

// NewProcSource opens /proc. It fails with ErrSamplerUnavailable on platforms
// without procfs.
func NewProcSource() (ProcessSource, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrSamplerUnavailable, err)
	}

	return &procSource{fs: fs}, nil
}

func (p *procSource) Process() (ProcessStats, error) {
	errFactory := errors.New()

	proc, err := p.fs.Self()
	if err != nil {
		return ProcessStats{}, errFactory.Wrap(errors.ErrSamplerUnavailable, err)
	}

	stat, err := proc.Stat()
	if err != nil {
		return ProcessStats{}, errFactory.Wrap(errors.ErrSamplerUnavailable, err)
	}

	stats := ProcessStats{
		CPUSeconds:    stat.CPUTime(),
		ResidentBytes: uint64(stat.ResidentMemory()),
	}

	if start, err := stat.StartTime(); err == nil {
		sec := int64(start)
		stats.StartTime = time.Unix(sec, int64((start-float64(sec))*float64(time.Second)))
	}

	return stats, nil
}

func (p *procSource) LoadAverage() (LoadAverage, error) {
	avg, err := p.fs.LoadAvg()
	if err != nil {
		return LoadAverage{}, errors.New().Wrap(errors.ErrSamplerUnavailable, err)
	}

	return LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}
