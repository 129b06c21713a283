package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceSnapshot is a point-in-time host/process health reading,
// attached to GET /health so an operator can tell a slow sync run from
// a starved host without reaching for a separate metrics stack.
type ResourceSnapshot struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	MemoryUsedMB   uint64  `json:"memory_used_mb"`
	ProcessRSSMB   uint64  `json:"process_rss_mb"`
	GoroutineCount int     `json:"goroutine_count"`
}

// CollectResources samples host CPU/memory and this process's RSS. Any
// sampling failure yields a zero-value field rather than aborting the
// whole snapshot, since a health check should degrade, not fail, when a
// single gopsutil probe is unavailable (e.g. under a restricted
// container runtime).
func CollectResources() ResourceSnapshot {
	snap := ResourceSnapshot{GoroutineCount: runtime.NumGoroutine()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsedMB = vm.Used / (1024 * 1024)
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			snap.ProcessRSSMB = info.RSS / (1024 * 1024)
		}
	}

	return snap
}

// LogHealthCheckWithResources records a health check result alongside a
// resource snapshot, merged into the same structured log line.
func (l *Logger) LogHealthCheckWithResources(component, status string, snap ResourceSnapshot, extra map[string]interface{}) {
	details := map[string]interface{}{
		"cpu_percent":     snap.CPUPercent,
		"memory_percent":  snap.MemoryPercent,
		"memory_used_mb":  snap.MemoryUsedMB,
		"process_rss_mb":  snap.ProcessRSSMB,
		"goroutine_count": snap.GoroutineCount,
	}
	for k, v := range extra {
		details[k] = v
	}
	l.LogHealthCheck(component, status, details)
}
