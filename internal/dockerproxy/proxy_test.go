package dockerproxy

import (
	"reflect"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
)

func TestSummarize(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := types.Container{
		ID:     "0123456789abcdef0123456789abcdef",
		Names:  []string{"/panel-db", "/alias"},
		Image:  "postgres:16",
		Status: "Up 2 hours",
		Ports: []types.Port{
			{PrivatePort: 5432, PublicPort: 15432},
			{PrivatePort: 9187},
		},
		Created: created.Unix(),
	}

	info := summarize(c)
	if info.ID != "0123456789ab" {
		t.Errorf("id %q, expected 12-char form", info.ID)
	}
	if info.Name != "panel-db" {
		t.Errorf("name %q, expected leading slash stripped", info.Name)
	}
	if info.Image != "postgres:16" || info.Status != "Up 2 hours" {
		t.Errorf("image/status %q/%q", info.Image, info.Status)
	}
	if want := []string{"15432:5432", "9187"}; !reflect.DeepEqual(info.Ports, want) {
		t.Errorf("ports %v, want %v", info.Ports, want)
	}
	if !info.Created.Equal(created) {
		t.Errorf("created %v, want %v", info.Created, created)
	}
}

func TestSummarizeMinimal(t *testing.T) {
	info := summarize(types.Container{ID: "abc"})
	if info.ID != "abc" {
		t.Errorf("short ids pass through, got %q", info.ID)
	}
	if info.Name != "" {
		t.Errorf("expected empty name, got %q", info.Name)
	}
	if len(info.Ports) != 0 {
		t.Errorf("expected no ports, got %v", info.Ports)
	}
}

func TestCPUPercent(t *testing.T) {
	stats := &container.StatsResponse{}
	stats.PreCPUStats.CPUUsage.TotalUsage = 1000
	stats.PreCPUStats.SystemUsage = 10000
	stats.CPUStats.CPUUsage.TotalUsage = 1500
	stats.CPUStats.SystemUsage = 20000

	if got := cpuPercent(stats); got != 5.0 {
		t.Errorf("cpu percent %f, want 5.0", got)
	}
}

func TestCPUPercentNoDelta(t *testing.T) {
	stats := &container.StatsResponse{}
	stats.CPUStats.CPUUsage.TotalUsage = 1000
	stats.CPUStats.SystemUsage = 10000
	stats.PreCPUStats.CPUUsage.TotalUsage = 1000
	stats.PreCPUStats.SystemUsage = 10000

	if got := cpuPercent(stats); got != 0 {
		t.Errorf("expected 0 with no system delta, got %f", got)
	}

	// Counters that ran backwards (engine restart) read as zero, not
	// as a huge unsigned difference.
	stats.PreCPUStats.CPUUsage.TotalUsage = 5000
	stats.PreCPUStats.SystemUsage = 50000
	if got := cpuPercent(stats); got != 0 {
		t.Errorf("expected 0 on counter reset, got %f", got)
	}
}

func TestSplitLogLines(t *testing.T) {
	lines := splitLogLines("first\nsecond\r\n\nthird")
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines %v, want %v", lines, want)
	}

	if got := splitLogLines(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
