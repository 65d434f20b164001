package metrics

import (
	"context"
	"testing"
)

func TestSystemMetrics(t *testing.T) {
	m, err := SystemMetrics(context.Background())
	if err != nil {
		t.Fatalf("SystemMetrics: %v", err)
	}

	for _, key := range []string{
		"cpu_usage", "memory_usage_percent", "memory_total", "memory_used", "process_count",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}

	if m["memory_total"] <= 0 {
		t.Errorf("memory_total %f, expected > 0", m["memory_total"])
	}
	if m["memory_used"] > m["memory_total"] {
		t.Errorf("memory_used %f exceeds total %f", m["memory_used"], m["memory_total"])
	}
	if m["memory_usage_percent"] < 0 || m["memory_usage_percent"] > 100 {
		t.Errorf("memory_usage_percent %f out of range", m["memory_usage_percent"])
	}
	if m["process_count"] < 1 {
		t.Errorf("process_count %f, expected at least 1", m["process_count"])
	}
}
