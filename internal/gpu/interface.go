package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// Source produces GPU readings for the resource sampler.
type Source interface {
	Sample() (Stats, error)
}

// Stats is one reading of the first GPU.
type Stats struct {
	Name               string  `json:"name" yaml:"name"`
	UtilizationPercent float64 `json:"utilizationPercent" yaml:"utilizationPercent"`
	MemoryUsedBytes    uint64  `json:"memoryUsedBytes" yaml:"memoryUsedBytes"`
	MemoryTotalBytes   uint64  `json:"memoryTotalBytes" yaml:"memoryTotalBytes"`
	Temperature        int     `json:"temperature" yaml:"temperature"`
	AverageTemperature int     `json:"averageTemperature" yaml:"averageTemperature"`
	PowerWatts         float64 `json:"powerWatts" yaml:"powerWatts"`
}

// device is the subset of nvml.Device the sampler reads.
type device interface {
	GetName() (string, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
}
