package tuner

import (
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() returned error: %v", err)
	}

	if resources.CPUCores != runtime.NumCPU() {
		t.Errorf("CPUCores = %d, want %d (runtime.NumCPU())", resources.CPUCores, runtime.NumCPU())
	}

	if resources.TotalRAM <= 0 {
		t.Errorf("TotalRAM = %d, want > 0", resources.TotalRAM)
	}

	if resources.AvailableRAM < 0 || resources.AvailableRAM > resources.TotalRAM {
		t.Errorf("AvailableRAM = %d, want between 0 and TotalRAM (%d)",
			resources.AvailableRAM, resources.TotalRAM)
	}
}

func TestCalculate(t *testing.T) {
	const gib = int64(1024 * 1024 * 1024)

	tests := []struct {
		name      string
		resources SystemResources
		want      OptimalConfig
	}{
		{
			name:      "single core, unknown memory",
			resources: SystemResources{CPUCores: 1},
			want:      OptimalConfig{DigestWorkers: 2, WalkWorkers: 4, ChunkSize: 64 * 1024},
		},
		{
			name:      "laptop (8 cores, 8GB free)",
			resources: SystemResources{CPUCores: 8, TotalRAM: 16 * gib, AvailableRAM: 8 * gib},
			want:      OptimalConfig{DigestWorkers: 16, WalkWorkers: 8, ChunkSize: 1024 * 1024},
		},
		{
			name:      "tight memory (4 cores, 64MB free)",
			resources: SystemResources{CPUCores: 4, TotalRAM: gib, AvailableRAM: 64 * 1024 * 1024},
			want:      OptimalConfig{DigestWorkers: 8, WalkWorkers: 4, ChunkSize: 64 * 1024},
		},
		{
			name:      "huge server is capped",
			resources: SystemResources{CPUCores: 128, TotalRAM: 512 * gib, AvailableRAM: 256 * gib},
			want:      OptimalConfig{DigestWorkers: 64, WalkWorkers: 32, ChunkSize: 1024 * 1024},
		},
		{
			name:      "starved memory keeps minimum chunk",
			resources: SystemResources{CPUCores: 2, TotalRAM: gib, AvailableRAM: 1024 * 1024},
			want:      OptimalConfig{DigestWorkers: 4, WalkWorkers: 4, ChunkSize: 4 * 1024},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.resources)
			if got != tt.want {
				t.Errorf("Calculate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculateWithOverrides(t *testing.T) {
	resources := SystemResources{CPUCores: 4, TotalRAM: 8 << 30, AvailableRAM: 4 << 30}
	base := Calculate(resources)

	tests := []struct {
		name       string
		workers    int
		chunk      int
		wantWorker int
		wantChunk  int
	}{
		{"no overrides", 0, 0, base.DigestWorkers, base.ChunkSize},
		{"worker override", 3, 0, 3, base.ChunkSize},
		{"worker override capped", 500, 0, maxWorkers, base.ChunkSize},
		{"chunk override", 0, 128 * 1024, base.DigestWorkers, 128 * 1024},
		{"tiny chunk raised", 0, 10, base.DigestWorkers, minChunkSize},
		{"huge chunk capped", 0, 1 << 30, base.DigestWorkers, maxChunkSize},
		{"negative ignored", -1, -1, base.DigestWorkers, base.ChunkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateWithOverrides(resources, tt.workers, tt.chunk)
			if got.DigestWorkers != tt.wantWorker {
				t.Errorf("DigestWorkers = %d, want %d", got.DigestWorkers, tt.wantWorker)
			}
			if got.ChunkSize != tt.wantChunk {
				t.Errorf("ChunkSize = %d, want %d", got.ChunkSize, tt.wantChunk)
			}
			if got.WalkWorkers != base.WalkWorkers {
				t.Errorf("WalkWorkers = %d, want %d", got.WalkWorkers, base.WalkWorkers)
			}
		})
	}
}
