package engine

import (
	"math"
	"testing"

	"github.com/docker/docker/api/types/container"
)

func TestCalcStats(t *testing.T) {
	resp := container.StatsResponse{
		CPUStats: container.CPUStats{
			CPUUsage:    container.CPUUsage{TotalUsage: 400_000_000},
			SystemUsage: 10_000_000_000,
			OnlineCPUs:  4,
		},
		PreCPUStats: container.CPUStats{
			CPUUsage:    container.CPUUsage{TotalUsage: 200_000_000},
			SystemUsage: 8_000_000_000,
		},
		MemoryStats: container.MemoryStats{
			Usage: 512 << 20,
			Limit: 2 << 30,
		},
		BlkioStats: container.BlkioStats{
			IoServiceBytesRecursive: []container.BlkioStatEntry{
				{Op: "read", Value: 4096},
				{Op: "Read", Value: 4096},
				{Op: "write", Value: 1024},
				{Op: "Total", Value: 9216},
			},
		},
		PidsStats: container.PidsStats{Current: 42},
		Networks: map[string]container.NetworkStats{
			"eth0": {RxBytes: 1000, TxBytes: 2000},
			"eth1": {RxBytes: 11, TxBytes: 22},
		},
	}

	s := calcStats(resp)

	// 200e6 used of a 2e9 system delta across 4 CPUs.
	if math.Abs(s.CPUPercent-40) > 1e-9 {
		t.Errorf("cpu%% = %v, want 40", s.CPUPercent)
	}
	if s.MemoryUsage != 512<<20 || s.MemoryLimit != 2<<30 {
		t.Errorf("mem = %d/%d", s.MemoryUsage, s.MemoryLimit)
	}
	if math.Abs(s.MemoryPercent-25) > 1e-9 {
		t.Errorf("mem%% = %v, want 25", s.MemoryPercent)
	}
	if s.NetworkRx != 1011 || s.NetworkTx != 2022 {
		t.Errorf("net = %d/%d, want 1011/2022", s.NetworkRx, s.NetworkTx)
	}
	if s.BlockRead != 8192 || s.BlockWrite != 1024 {
		t.Errorf("block = %d/%d, want 8192/1024", s.BlockRead, s.BlockWrite)
	}
	if s.PIDs != 42 {
		t.Errorf("pids = %d, want 42", s.PIDs)
	}
}

func TestCalcStatsOnlineCPUFallback(t *testing.T) {
	resp := container.StatsResponse{
		CPUStats: container.CPUStats{
			CPUUsage: container.CPUUsage{
				TotalUsage:  200_000_000,
				PercpuUsage: []uint64{100_000_000, 100_000_000},
			},
			SystemUsage: 2_000_000_000,
		},
		PreCPUStats: container.CPUStats{
			CPUUsage:    container.CPUUsage{TotalUsage: 100_000_000},
			SystemUsage: 1_000_000_000,
		},
	}
	s := calcStats(resp)
	if math.Abs(s.CPUPercent-20) > 1e-9 {
		t.Errorf("cpu%% = %v, want 20 via percpu fallback", s.CPUPercent)
	}
}

func TestCalcStatsDegenerate(t *testing.T) {
	tests := []struct {
		name string
		resp container.StatsResponse
	}{
		{"zero sample", container.StatsResponse{}},
		{
			// First sample after start: no previous reading.
			"no deltas",
			container.StatsResponse{
				CPUStats: container.CPUStats{
					CPUUsage:   container.CPUUsage{TotalUsage: 100},
					OnlineCPUs: 2,
				},
				PreCPUStats: container.CPUStats{
					CPUUsage:    container.CPUUsage{TotalUsage: 100},
					SystemUsage: 0,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := calcStats(tt.resp)
			if s.CPUPercent != 0 {
				t.Errorf("cpu%% = %v, want 0", s.CPUPercent)
			}
			if s.MemoryPercent != 0 {
				t.Errorf("mem%% = %v, want 0 for unlimited", s.MemoryPercent)
			}
		})
	}
}
