// Package gpu reads utilization, memory, temperature and power of the first
// NVIDIA GPU through NVML. It never changes device settings.
package gpu

import (
	"sync"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	temperatureWindowSize = 5
	milliWattsToWatts     = 1000
)

type GPU struct {
	nvml               *nvmlWrapper
	device             device
	name               string
	temperatureHistory []int
	mu                 sync.Mutex
	logger             logger.Logger
}

// New initializes NVML and opens device 0. The returned error carries
// ErrInitFailed or ErrDeviceNotFound when no usable GPU exists, which callers
// treat as the GPU source being unavailable.
func New(log logger.Logger) (*GPU, error) {
	w := &nvmlWrapper{}
	if err := w.Initialize(); err != nil {
		return nil, err
	}

	dev, err := w.GetDevice(0)
	if err != nil {
		_ = w.Shutdown()
		return nil, err
	}

	g := newWithDevice(dev, log)
	g.nvml = w

	return g, nil
}

func newWithDevice(dev device, log logger.Logger) *GPU {
	g := &GPU{
		device: dev,
		logger: log.With("gpu"),
	}

	if name, ret := dev.GetName(); IsNVMLSuccess(ret) {
		g.name = name
		g.logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		g.logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return g
}

// Sample reads the device. Temperature and utilization are required; memory
// and power readings that the device does not support are reported as zero.
func (g *GPU) Sample() (Stats, error) {
	errFactory := errors.New()

	temp, ret := g.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return Stats{}, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	util, ret := g.device.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		return Stats{}, errFactory.Wrap(ErrUtilizationReadFailed, newNVMLError(ret))
	}

	stats := Stats{
		Name:               g.name,
		UtilizationPercent: float64(util.Gpu),
		Temperature:        int(temp),
		AverageTemperature: g.UpdateTemperatureHistory(int(temp)),
	}

	if mem, ret := g.device.GetMemoryInfo(); IsNVMLSuccess(ret) {
		stats.MemoryUsedBytes = mem.Used
		stats.MemoryTotalBytes = mem.Total
	} else {
		g.logger.Debug().Msgf("Memory info unavailable: %v", nvml.ErrorString(ret))
	}

	if mw, ret := g.device.GetPowerUsage(); IsNVMLSuccess(ret) {
		stats.PowerWatts = float64(mw) / milliWattsToWatts
	}

	return stats, nil
}

// UpdateTemperatureHistory appends a reading and returns the rolling average
// over the last temperatureWindowSize readings.
func (g *GPU) UpdateTemperatureHistory(currentTemperature int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.temperatureHistory = append(g.temperatureHistory, currentTemperature)
	if len(g.temperatureHistory) > temperatureWindowSize {
		g.temperatureHistory = g.temperatureHistory[1:]
	}

	sum := 0
	for _, temp := range g.temperatureHistory {
		sum += temp
	}

	return sum / len(g.temperatureHistory)
}

func (g *GPU) Shutdown() error {
	if g.nvml == nil {
		return nil
	}

	return g.nvml.Shutdown()
}
