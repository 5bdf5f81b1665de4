package httpapi

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemUsage is a point-in-time host sample reported by /healthz. Fields are
// omitted when the platform cannot provide them.
type SystemUsage struct {
	CPUPercent       *float64 `json:"cpu_percent,omitempty"`
	MemoryPercent    *float64 `json:"memory_percent,omitempty"`
	MemoryUsedBytes  *uint64  `json:"memory_used_bytes,omitempty"`
	MemoryTotalBytes *uint64  `json:"memory_total_bytes,omitempty"`
}

func sampleSystem(ctx context.Context) SystemUsage {
	var u SystemUsage
	// Zero interval compares against the previous call instead of sleeping.
	if v, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(v) > 0 {
		u.CPUPercent = &v[0]
	}
	if m, err := mem.VirtualMemoryWithContext(ctx); err == nil && m != nil {
		u.MemoryPercent = &m.UsedPercent
		u.MemoryUsedBytes = &m.Used
		u.MemoryTotalBytes = &m.Total
	}
	return u
}
