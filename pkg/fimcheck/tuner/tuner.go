// Package tuner detects system resources and derives worker counts and read
// buffer sizes for snapshot builds.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the free RAM in bytes. It may be an estimate.
	AvailableRAM int64
}
