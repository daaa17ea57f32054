package tuner

// Worker configuration limits.
const (
	// maxWorkers is the maximum number of digest workers.
	maxWorkers = 64

	// minDigestWorkers is the minimum number of digest workers.
	minDigestWorkers = 2

	// maxWalkWorkers caps fastwalk directory readers.
	maxWalkWorkers = 32

	// minWalkWorkers is the minimum number of directory readers.
	minWalkWorkers = 4
)

// Read buffer sizing.
const (
	// minChunkSize is the smallest read buffer handed to a digest worker.
	minChunkSize = 4 * 1024

	// maxChunkSize is the largest read buffer handed to a digest worker.
	maxChunkSize = 1024 * 1024

	// defaultChunkSize is used when memory is unknown.
	defaultChunkSize = 64 * 1024

	// bufferMemoryFraction is the share of available RAM all read buffers
	// together may occupy.
	bufferMemoryFraction = 0.01
)

// OptimalConfig is the tuned build configuration.
type OptimalConfig struct {
	// DigestWorkers is the number of concurrent file digest workers.
	DigestWorkers int

	// WalkWorkers is the number of directory readers used by the walker.
	WalkWorkers int

	// ChunkSize is the read buffer size per digest worker.
	ChunkSize int
}

// Calculate returns the configuration for the given resources.
//
//   - DigestWorkers: NumCPU * 2, since hashing alternates between disk
//     waits and CPU-bound compression rounds
//   - WalkWorkers: max(NumCPU, 4), capped at 32
//   - ChunkSize: a power of two between 4KiB and 1MiB such that all worker
//     buffers fit in 1% of available RAM
func Calculate(resources SystemResources) OptimalConfig {
	digestWorkers := resources.CPUCores * 2
	digestWorkers = max(digestWorkers, minDigestWorkers)
	digestWorkers = min(digestWorkers, maxWorkers)

	walkWorkers := max(resources.CPUCores, minWalkWorkers)
	walkWorkers = min(walkWorkers, maxWalkWorkers)

	return OptimalConfig{
		DigestWorkers: digestWorkers,
		WalkWorkers:   walkWorkers,
		ChunkSize:     calculateChunkSize(resources.AvailableRAM, digestWorkers),
	}
}

// CalculateWithOverrides applies user overrides to the calculated config.
// Values of zero or less keep the calculated value.
func CalculateWithOverrides(resources SystemResources, workerOverride, chunkOverride int) OptimalConfig {
	config := Calculate(resources)

	if workerOverride > 0 {
		config.DigestWorkers = min(workerOverride, maxWorkers)
	}
	if chunkOverride > 0 {
		config.ChunkSize = min(max(chunkOverride, minChunkSize), maxChunkSize)
	}

	return config
}

// calculateChunkSize picks the largest power-of-two buffer that fits the budget.
func calculateChunkSize(availableRAM int64, workers int) int {
	if availableRAM <= 0 || workers <= 0 {
		return defaultChunkSize
	}

	budget := int64(float64(availableRAM)*bufferMemoryFraction) / int64(workers)

	size := int64(minChunkSize)
	for size*2 <= budget && size*2 <= maxChunkSize {
		size *= 2
	}
	return int(size)
}
