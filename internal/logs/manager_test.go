package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vawter.tech/stopper"

	"github.com/panelkit/devpanel/internal/models"
	"github.com/panelkit/devpanel/internal/store"
)

func newTestManager(t *testing.T, withStore bool) (*Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var st *store.Store
	if withStore {
		var err error
		st, err = store.New(filepath.Join(dir, "logs.db"))
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		t.Cleanup(func() { st.Close() })
	}

	sctx := stopper.WithContext(context.Background())
	t.Cleanup(func() {
		sctx.Stop(2 * time.Second)
		sctx.Wait()
	})

	var w *store.Writer
	if withStore {
		w = store.NewWriter(st, log)
		w.Start(sctx)
	}

	m, err := NewManager(sctx, filepath.Join(dir, "logs"), 20*time.Millisecond, NewHub(), st, w, log)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return m, st
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestRegisterCreatesFile(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	if _, err := os.Stat(m.LogPath("backend")); err != nil {
		t.Errorf("Expected log file to exist: %v", err)
	}

	// Idempotent
	if err := m.RegisterService("backend"); err != nil {
		t.Errorf("Second RegisterService failed: %v", err)
	}
	if len(m.ServiceIDs()) != 1 {
		t.Errorf("Expected 1 registered service, got %d", len(m.ServiceIDs()))
	}
}

func TestTailerDeliversNewLines(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	subID, ch := m.Hub().Subscribe("backend")
	defer m.Hub().Unsubscribe("backend", subID)

	appendLine(t, m.LogPath("backend"), "INFO server started\nERROR something broke\n")

	var got []models.LogEntry
	for len(got) < 2 {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out, got %d entries", len(got))
		}
	}
	if got[0].Message != "INFO server started" || got[0].Level != "info" {
		t.Errorf("Unexpected first entry: %+v", got[0])
	}
	if got[1].Message != "ERROR something broke" || got[1].Level != "error" {
		t.Errorf("Unexpected second entry: %+v", got[1])
	}
}

func TestTailerStartsAtEndOfExistingFile(t *testing.T) {
	m, _ := newTestManager(t, false)

	// Content present before registration must not be re-streamed
	path := m.LogPath("backend")
	appendLine(t, path, "old line 1\nold line 2\n")

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	subID, ch := m.Hub().Subscribe("backend")
	defer m.Hub().Unsubscribe("backend", subID)

	appendLine(t, path, "new line\n")

	select {
	case e := <-ch:
		if e.Message != "new line" {
			t.Errorf("Expected only the new line, got %q", e.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for new line")
	}
}

func TestTailerSkipsBlankLines(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	subID, ch := m.Hub().Subscribe("backend")
	defer m.Hub().Unsubscribe("backend", subID)

	appendLine(t, m.LogPath("backend"), "\n\n  \nreal line\n\n")

	select {
	case e := <-ch:
		if e.Message != "real line" {
			t.Errorf("Expected blank lines skipped, got %q", e.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for entry")
	}
	select {
	case e := <-ch:
		t.Errorf("Unexpected extra entry: %q", e.Message)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTailerHoldsPartialLine(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	subID, ch := m.Hub().Subscribe("backend")
	defer m.Hub().Unsubscribe("backend", subID)

	// No trailing newline: the fragment must not be emitted yet
	appendLine(t, m.LogPath("backend"), "half a li")
	select {
	case e := <-ch:
		t.Fatalf("Partial line emitted early: %q", e.Message)
	case <-time.After(150 * time.Millisecond):
	}

	appendLine(t, m.LogPath("backend"), "ne completed\n")
	select {
	case e := <-ch:
		if e.Message != "half a line completed" {
			t.Errorf("Expected the whole line, got %q", e.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for completed line")
	}
}

func TestTailerPersistsToStore(t *testing.T) {
	m, st := newTestManager(t, true)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	appendLine(t, m.LogPath("backend"), "INFO persisted line\n")

	ok := waitFor(t, 3*time.Second, func() bool {
		count, err := st.CountLogs(models.LogFilters{ServiceID: "backend"})
		return err == nil && count == 1
	})
	if !ok {
		t.Error("Expected tailed line to reach the store")
	}
}

func TestUnregisterStopsTailer(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	subID, ch := m.Hub().Subscribe("backend")
	defer m.Hub().Unsubscribe("backend", subID)

	m.UnregisterService("backend")
	if len(m.ServiceIDs()) != 0 {
		t.Errorf("Expected no registered services, got %v", m.ServiceIDs())
	}

	// Give the tailer a moment to wind down, then append
	time.Sleep(100 * time.Millisecond)
	appendLine(t, m.LogPath("backend"), "after unregister\n")

	select {
	case e := <-ch:
		t.Errorf("Tailer still running after unregister: %q", e.Message)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTailFile(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	appendLine(t, m.LogPath("backend"), "one\ntwo\nthree\nfour\n")

	lines, err := m.TailFile("backend", 2)
	if err != nil {
		t.Fatalf("TailFile failed: %v", err)
	}
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Errorf("Expected last two lines, got %v", lines)
	}

	all, err := m.TailFile("backend", 0)
	if err != nil {
		t.Fatalf("TailFile failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected all 4 lines, got %d", len(all))
	}

	if _, err := m.TailFile("unknown", 10); err == nil {
		t.Error("Expected error for unregistered service")
	}
}

func TestMigrateFromFile(t *testing.T) {
	m, st := newTestManager(t, true)

	path := m.LogPath("backend")
	appendLine(t, path, "2025-03-01T10:00:00Z INFO historic one\n\n2025-03-01T10:00:01Z ERROR historic two\n")

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	count, err := m.MigrateFromFile("backend")
	if err != nil {
		t.Fatalf("MigrateFromFile failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 migrated entries, got %d", count)
	}

	entries, err := st.QueryLogs(models.LogFilters{ServiceID: "backend"})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 stored entries, got %d", len(entries))
	}
	if entries[0].Message != "2025-03-01T10:00:00Z INFO historic one" {
		t.Errorf("Unexpected first entry: %q", entries[0].Message)
	}
	if entries[1].Level != "error" {
		t.Errorf("Expected parsed level error, got %s", entries[1].Level)
	}
}

func TestMigrateFromFileWithoutStore(t *testing.T) {
	m, _ := newTestManager(t, false)

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	appendLine(t, m.LogPath("backend"), "line\n")

	count, err := m.MigrateFromFile("backend")
	if err != nil {
		t.Errorf("Expected migration without store to be a no-op, got %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 migrated entries, got %d", count)
	}
}

func TestMigrateAll(t *testing.T) {
	m, st := newTestManager(t, true)

	appendLine(t, m.LogPath("backend"), "one\ntwo\n")
	appendLine(t, m.LogPath("dashboard"), "three\n")

	if err := m.RegisterService("backend"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	if err := m.RegisterService("dashboard"); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	total := m.MigrateAll()
	if total != 3 {
		t.Errorf("Expected 3 migrated entries, got %d", total)
	}

	count, _ := st.CountLogs(models.LogFilters{})
	if count != 3 {
		t.Errorf("Expected 3 stored entries, got %d", count)
	}
}

func TestFilteredFromStore(t *testing.T) {
	m, st := newTestManager(t, true)

	now := time.Now().UTC()
	seed := []models.LogEntry{
		{Timestamp: now.Add(-2 * time.Second), ServiceID: "backend", Level: "info", Message: "fine"},
		{Timestamp: now.Add(-1 * time.Second), ServiceID: "backend", Level: "error", Message: "broken"},
		{Timestamp: now, ServiceID: "dashboard", Level: "info", Message: "fine too"},
	}
	if err := st.InsertBatch(seed); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	res, err := m.Filtered(models.LogFilters{ServiceID: "backend", Level: "error"}, false)
	if err != nil {
		t.Fatalf("Filtered failed: %v", err)
	}
	if res.Filtered != 1 || len(res.Logs) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(res.Logs))
	}
	if res.Logs[0].Message != "broken" {
		t.Errorf("Unexpected match: %q", res.Logs[0].Message)
	}
	// Total counts the service's entries before level filtering
	if res.Total != 2 {
		t.Errorf("Expected total 2, got %d", res.Total)
	}
}

func TestCombinedFromStore(t *testing.T) {
	m, st := newTestManager(t, true)

	now := time.Now().UTC()
	seed := []models.LogEntry{
		{Timestamp: now.Add(-1 * time.Second), ServiceID: "backend", Level: "info", Message: "a"},
		{Timestamp: now, ServiceID: "dashboard", Level: "info", Message: "b"},
	}
	if err := st.InsertBatch(seed); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	res, err := m.Combined(models.LogFilters{ServiceID: "ignored"}, false)
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}
	if len(res.Logs) != 2 {
		t.Errorf("Expected entries from both services, got %d", len(res.Logs))
	}
}
