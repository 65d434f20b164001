package logs

import (
	"testing"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

func seedFallbackFiles(t *testing.T, m *Manager) {
	t.Helper()
	appendLine(t, m.LogPath("backend"),
		"2025-03-01T10:00:00Z INFO backend up\n"+
			"2025-03-01T10:00:05Z ERROR backend db timeout\n"+
			"2025-03-01T10:00:10Z WARN backend retrying\n")
	appendLine(t, m.LogPath("dashboard"),
		"2025-03-01T10:00:02Z INFO dashboard up\n"+
			"2025-03-01T10:00:07Z ERROR dashboard render failed\n")
	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	if err := m.RegisterService("dashboard"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
}

func TestFallbackSingleService(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	res, err := m.Filtered(models.LogFilters{ServiceID: "backend", Level: "error"}, false)
	if err != nil {
		t.Fatalf("Filtered failed: %v", err)
	}
	if res.Total != 3 {
		t.Errorf("Expected total 3 lines in backend file, got %d", res.Total)
	}
	if res.Filtered != 1 || len(res.Logs) != 1 {
		t.Fatalf("Expected 1 error entry, got %d", len(res.Logs))
	}
	if res.Logs[0].Message != "2025-03-01T10:00:05Z ERROR backend db timeout" {
		t.Errorf("Unexpected entry: %q", res.Logs[0].Message)
	}
}

func TestFallbackUnknownService(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	if _, err := m.Filtered(models.LogFilters{ServiceID: "unknown"}, false); err == nil {
		t.Error("Expected error for unknown service")
	}
}

func TestFallbackCombinedSortsAcrossServices(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	res, err := m.Combined(models.LogFilters{}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	if res.Total != 5 || len(res.Logs) != 5 {
		t.Fatalf("Expected 5 entries, got total=%d len=%d", res.Total, len(res.Logs))
	}
	for i := 1; i < len(res.Logs); i++ {
		if res.Logs[i].Timestamp.Before(res.Logs[i-1].Timestamp) {
			t.Errorf("Entries out of order at %d: %v after %v", i, res.Logs[i].Timestamp, res.Logs[i-1].Timestamp)
		}
	}
	if res.Logs[1].ServiceID != "dashboard" {
		t.Errorf("Expected interleaved services, got %s at index 1", res.Logs[1].ServiceID)
	}
}

func TestFallbackAndSemantics(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	since := time.Date(2025, 3, 1, 10, 0, 3, 0, time.UTC)
	res, err := m.Combined(models.LogFilters{Level: "error", Since: &since, Search: "db"}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	// Only the backend db timeout matches every predicate
	if len(res.Logs) != 1 || res.Logs[0].ServiceID != "backend" {
		t.Fatalf("Expected 1 conjunctive match, got %d", len(res.Logs))
	}
}

func TestFallbackOrSemantics(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	since := time.Date(2025, 3, 1, 10, 0, 9, 0, time.UTC)
	res, err := m.Combined(models.LogFilters{Level: "error", Since: &since}, true)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	// Errors (2) plus the late WARN line match disjunctively
	if len(res.Logs) != 3 {
		t.Fatalf("Expected 3 disjunctive matches, got %d", len(res.Logs))
	}
}

func TestFallbackSearchCaseInsensitive(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	res, err := m.Combined(models.LogFilters{Search: "RENDER"}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	if len(res.Logs) != 1 || res.Logs[0].ServiceID != "dashboard" {
		t.Fatalf("Expected case-insensitive search match, got %d", len(res.Logs))
	}
}

func TestFallbackLevelAll(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	res, err := m.Combined(models.LogFilters{Level: "all"}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	if len(res.Logs) != 5 {
		t.Errorf("Expected level=all to match everything, got %d", len(res.Logs))
	}
}

func TestFallbackPagination(t *testing.T) {
	m, _ := newTestManager(t, false)
	seedFallbackFiles(t, m)

	res, err := m.Combined(models.LogFilters{Limit: 2}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	// Newest two, oldest-first within the page
	if len(res.Logs) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(res.Logs))
	}
	if res.Logs[0].ServiceID != "dashboard" || res.Logs[1].ServiceID != "backend" {
		t.Errorf("Expected the newest window, got %s/%s", res.Logs[0].ServiceID, res.Logs[1].ServiceID)
	}

	res, err = m.Combined(models.LogFilters{Limit: 2, Offset: 2}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	if len(res.Logs) != 2 || res.Logs[0].ServiceID != "dashboard" || res.Logs[1].ServiceID != "backend" {
		t.Errorf("Expected the next window back, got %+v", res.Logs)
	}
}

func TestMatchEntry(t *testing.T) {
	e := models.LogEntry{
		Timestamp: time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC),
		ServiceID: "backend",
		Level:     "error",
		Message:   "db timeout",
	}
	early := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)

	if !matchEntry(e, models.LogFilters{}, false) {
		t.Error("Empty filters should match")
	}
	if !matchEntry(e, models.LogFilters{Level: "ERROR"}, false) {
		t.Error("Level match should be case-insensitive")
	}
	if matchEntry(e, models.LogFilters{Level: "warn"}, false) {
		t.Error("Mismatched level should not match")
	}
	if !matchEntry(e, models.LogFilters{Since: &early, Until: &late}, false) {
		t.Error("In-range timestamp should match")
	}
	if matchEntry(e, models.LogFilters{Since: &late}, false) {
		t.Error("Entry before since should not match")
	}
	if matchEntry(e, models.LogFilters{Level: "warn", Search: "db"}, false) {
		t.Error("Conjunction with one failing predicate should not match")
	}
	if !matchEntry(e, models.LogFilters{Level: "warn", Search: "db"}, true) {
		t.Error("Disjunction with one passing predicate should match")
	}
}

func TestPageNewest(t *testing.T) {
	entries := make([]models.LogEntry, 10)
	for i := range entries {
		entries[i] = models.LogEntry{Message: string(rune('a' + i))}
	}

	page := pageNewest(entries, 3, 0)
	if len(page) != 3 || page[0].Message != "h" || page[2].Message != "j" {
		t.Errorf("Expected newest window h..j, got %+v", page)
	}

	page = pageNewest(entries, 3, 3)
	if len(page) != 3 || page[0].Message != "e" || page[2].Message != "g" {
		t.Errorf("Expected window e..g, got %+v", page)
	}

	page = pageNewest(entries, 5, 8)
	if len(page) != 2 || page[0].Message != "a" {
		t.Errorf("Expected clamped window a..b, got %+v", page)
	}

	page = pageNewest(entries, 5, 20)
	if len(page) != 0 {
		t.Errorf("Expected empty page past the start, got %+v", page)
	}

	page = pageNewest(entries, 0, 0)
	if len(page) != 10 {
		t.Errorf("Expected default limit to cover all 10, got %d", len(page))
	}
}
