package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

func TestLoadMissing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if len(sf.Services) != 0 {
		t.Errorf("Expected empty snapshot, got %d services", len(sf.Services))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "state.json"))

	started := time.Now().UTC().Truncate(time.Second)
	services := []models.ServiceState{
		{ServiceID: "backend", PID: 1234, StartedAt: started, Command: "air", WorkingDir: "/srv/backend", Env: map[string]string{"PORT": "8085"}},
		{ServiceID: "dashboard", PID: 5678, StartedAt: started, Command: "npm run dev", WorkingDir: "/srv/dashboard"},
	}

	if err := s.Save(services); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(sf.Services) != 2 {
		t.Fatalf("Expected 2 services, got %d", len(sf.Services))
	}
	if sf.Services[0].ServiceID != "backend" || sf.Services[0].PID != 1234 {
		t.Errorf("Unexpected first service: %+v", sf.Services[0])
	}
	if sf.Services[0].Env["PORT"] != "8085" {
		t.Errorf("Expected environment to round-trip, got %+v", sf.Services[0].Env)
	}
	if sf.UpdatedAt.IsZero() {
		t.Error("Expected updated_at to be set")
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	s := New(path)
	sf, err := s.Load()
	if err == nil {
		t.Error("Expected advisory error for corrupt snapshot")
	}
	if sf == nil || len(sf.Services) != 0 {
		t.Error("Corrupt snapshot must still yield an empty usable snapshot")
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	if err := s.Save([]models.ServiceState{{ServiceID: "a", PID: 1}}); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := s.Save([]models.ServiceState{{ServiceID: "b", PID: 2}}); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(sf.Services) != 1 || sf.Services[0].ServiceID != "b" {
		t.Errorf("Expected snapshot to be fully replaced, got %+v", sf.Services)
	}
}

func TestSaveNil(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	if err := s.Save(nil); err != nil {
		t.Fatalf("Save(nil) failed: %v", err)
	}
	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sf.Services == nil {
		t.Error("Expected non-nil services slice")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("Failed to write blank file: %v", err)
	}

	s := New(path)
	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load of blank file failed: %v", err)
	}
	if len(sf.Services) != 0 {
		t.Errorf("Expected empty snapshot, got %d services", len(sf.Services))
	}
}

func TestUpsert(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	if err := s.Upsert(models.ServiceState{ServiceID: "backend", PID: 100}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Upsert(models.ServiceState{ServiceID: "dashboard", PID: 200}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// Second upsert of the same id replaces the entry
	if err := s.Upsert(models.ServiceState{ServiceID: "backend", PID: 300}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(sf.Services) != 2 {
		t.Fatalf("Expected 2 services, got %d", len(sf.Services))
	}
	pids := map[string]int{}
	for _, svc := range sf.Services {
		pids[svc.ServiceID] = svc.PID
	}
	if pids["backend"] != 300 || pids["dashboard"] != 200 {
		t.Errorf("Unexpected pids: %v", pids)
	}
}

func TestRemove(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	if err := s.Save([]models.ServiceState{{ServiceID: "a", PID: 1}, {ServiceID: "b", PID: 2}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	// Removing an absent id succeeds
	if err := s.Remove("unknown"); err != nil {
		t.Fatalf("Remove of absent id failed: %v", err)
	}

	sf, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(sf.Services) != 1 || sf.Services[0].ServiceID != "b" {
		t.Errorf("Expected only b to remain, got %+v", sf.Services)
	}
}
