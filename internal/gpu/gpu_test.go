package gpu

import (
	"testing"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	temps   []uint32
	tempRet nvml.Return
	memRet  nvml.Return
}

func (f *fakeDevice) GetName() (string, nvml.Return) { return "Test GPU", nvml.SUCCESS }

func (f *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	if f.tempRet != nvml.SUCCESS {
		return 0, f.tempRet
	}
	t := f.temps[0]
	f.temps = f.temps[1:]
	return t, nvml.SUCCESS
}

func (f *fakeDevice) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	return nvml.Utilization{Gpu: 37, Memory: 12}, nvml.SUCCESS
}

func (f *fakeDevice) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	if f.memRet != nvml.SUCCESS {
		return nvml.Memory{}, f.memRet
	}
	return nvml.Memory{Total: 8 << 30, Used: 2 << 30, Free: 6 << 30}, nvml.SUCCESS
}

func (f *fakeDevice) GetPowerUsage() (uint32, nvml.Return) { return 145500, nvml.SUCCESS }

func TestSample(t *testing.T) {
	g := newWithDevice(&fakeDevice{temps: []uint32{60}}, logger.Nop())

	stats, err := g.Sample()
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Name:               "Test GPU",
		UtilizationPercent: 37,
		MemoryUsedBytes:    2 << 30,
		MemoryTotalBytes:   8 << 30,
		Temperature:        60,
		AverageTemperature: 60,
		PowerWatts:         145.5,
	}, stats)
}

func TestSampleToleratesMissingMemoryInfo(t *testing.T) {
	g := newWithDevice(&fakeDevice{temps: []uint32{50}, memRet: nvml.ERROR_NOT_SUPPORTED}, logger.Nop())

	stats, err := g.Sample()
	require.NoError(t, err)
	assert.Zero(t, stats.MemoryTotalBytes)
}

func TestSampleFailsWithoutTemperature(t *testing.T) {
	g := newWithDevice(&fakeDevice{tempRet: nvml.ERROR_GPU_IS_LOST}, logger.Nop())

	_, err := g.Sample()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTemperatureReadFailed))
}

func TestTemperatureHistoryWindow(t *testing.T) {
	g := newWithDevice(&fakeDevice{}, logger.Nop())

	for _, temp := range []int{40, 50, 60, 70, 80} {
		g.UpdateTemperatureHistory(temp)
	}
	// 40 drops out of the window.
	assert.Equal(t, 64, g.UpdateTemperatureHistory(60))
	assert.Equal(t, 74, g.UpdateTemperatureHistory(100))
}

func TestShutdownWithoutNVML(t *testing.T) {
	g := newWithDevice(&fakeDevice{}, logger.Nop())
	assert.NoError(t, g.Shutdown())
}
