// Package metrics samples host-level resource usage via gopsutil.
package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemMetrics returns a flat snapshot of host CPU, memory, and
// process-count figures. CPU usage is measured since the previous
// call, so the first sample after boot reads as zero.
func SystemMetrics(ctx context.Context) (map[string]float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("sample cpu: %w", err)
	}
	cpuUsage := 0.0
	if len(percentages) > 0 {
		cpuUsage = percentages[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sample memory: %w", err)
	}

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	return map[string]float64{
		"cpu_usage":            cpuUsage,
		"memory_usage_percent": vm.UsedPercent,
		"memory_total":         float64(vm.Total),
		"memory_used":          float64(vm.Used),
		"process_count":        float64(len(pids)),
	}, nil
}
