package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Stats takes a one-shot resource usage sample of a running sandbox.
func (c *Client) Stats(ctx context.Context, id string) (*sandbox.Stats, error) {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats of sandbox %s: %w", id, err)
	}

	reader, err := c.docker.ContainerStats(ctx, insp.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats of sandbox %s: %w", id, classify(err))
	}
	defer reader.Body.Close()

	var resp container.StatsResponse
	if err := json.NewDecoder(reader.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode stats of sandbox %s: %w", id, err)
	}

	stats := calcStats(resp)
	return &stats, nil
}

// calcStats reduces a raw runtime sample to the user-facing numbers. CPU is
// the usage delta over the system delta since the previous sample, scaled by
// the online CPU count; a sample without deltas reads as zero.
func calcStats(resp container.StatsResponse) sandbox.Stats {
	var s sandbox.Stats

	cpuDelta := float64(resp.CPUStats.CPUUsage.TotalUsage) - float64(resp.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(resp.CPUStats.SystemUsage) - float64(resp.PreCPUStats.SystemUsage)
	onlineCPUs := float64(resp.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(resp.CPUStats.CPUUsage.PercpuUsage))
	}
	if cpuDelta > 0 && sysDelta > 0 {
		s.CPUPercent = cpuDelta / sysDelta * onlineCPUs * 100
	}

	s.MemoryUsage = resp.MemoryStats.Usage
	s.MemoryLimit = resp.MemoryStats.Limit
	if s.MemoryLimit > 0 {
		s.MemoryPercent = float64(s.MemoryUsage) / float64(s.MemoryLimit) * 100
	}

	for _, nw := range resp.Networks {
		s.NetworkRx += nw.RxBytes
		s.NetworkTx += nw.TxBytes
	}

	for _, entry := range resp.BlkioStats.IoServiceBytesRecursive {
		switch {
		case strings.EqualFold(entry.Op, "read"):
			s.BlockRead += entry.Value
		case strings.EqualFold(entry.Op, "write"):
			s.BlockWrite += entry.Value
		}
	}

	s.PIDs = resp.PidsStats.Current
	return s
}
