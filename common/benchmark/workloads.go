package benchmark

import "time"

// StandardWorkloads returns a representative spread of benchmark scenarios
// for cmd/bench's default run.
func StandardWorkloads() []Config {
	return []Config{
		{
			Name:            "write-heavy-uniform",
			WorkloadType:    WorkloadWriteHeavy,
			KeyDistribution: DistUniform,
			NumKeys:         100000,
			KeySize:         16,
			ValueSize:       100,
			Duration:        30 * time.Second,
			Concurrency:     8,
			PreloadKeys:     10000,
			Seed:            12345,
		},
		{
			Name:            "read-heavy-zipfian",
			WorkloadType:    WorkloadReadHeavy,
			KeyDistribution: DistZipfian,
			NumKeys:         100000,
			KeySize:         16,
			ValueSize:       100,
			Duration:        30 * time.Second,
			Concurrency:     8,
			PreloadKeys:     50000,
			Seed:            12345,
		},
		{
			Name:            "balanced-uniform",
			WorkloadType:    WorkloadBalanced,
			KeyDistribution: DistUniform,
			NumKeys:         100000,
			KeySize:         16,
			ValueSize:       100,
			Duration:        30 * time.Second,
			Concurrency:     8,
			PreloadKeys:     20000,
			Seed:            12345,
		},
		{
			Name:            "write-only-sequential",
			WorkloadType:    WorkloadWriteOnly,
			KeyDistribution: DistSequential,
			NumKeys:         100000,
			KeySize:         16,
			ValueSize:       100,
			Duration:        30 * time.Second,
			Concurrency:     4,
			Seed:            12345,
		},
	}
}

// QuickWorkloads is StandardWorkloads scaled down for a fast local run.
func QuickWorkloads() []Config {
	configs := StandardWorkloads()
	for i := range configs {
		configs[i].Duration = 5 * time.Second
		configs[i].NumKeys = 5000
		configs[i].PreloadKeys /= 10
		configs[i].Concurrency = 4
	}
	return configs
}
