package observability

import (
	"testing"

	"github.com/bitrixepl/engine/internal/config"
)

func TestCollectResources(t *testing.T) {
	snap := CollectResources()

	if snap.GoroutineCount <= 0 {
		t.Errorf("expected at least one goroutine to be reported, got %d", snap.GoroutineCount)
	}
}

func TestLogHealthCheckWithResources(t *testing.T) {
	cfg := &config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}
	logger := NewLogger(cfg)

	snap := ResourceSnapshot{CPUPercent: 1.5, MemoryPercent: 42, MemoryUsedMB: 512, ProcessRSSMB: 64, GoroutineCount: 12}

	// This should not panic.
	logger.LogHealthCheckWithResources("warehouse", "healthy", snap, map[string]interface{}{"note": "ok"})
}
