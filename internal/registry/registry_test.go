package registry

import (
	"testing"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

func seedServices() []models.Service {
	past := time.Now().UTC().Add(-time.Hour)
	return []models.Service{
		{ID: "backend", Name: "Backend (Go)", Status: models.ServiceStatusStopped, UpdatedAt: past},
		{ID: "dashboard", Name: "Dashboard (Next.js)", Status: models.ServiceStatusStopped, UpdatedAt: past},
	}
}

func TestAllReturnsCopy(t *testing.T) {
	reg := New(seedServices())

	first := reg.All()
	if len(first) != 2 {
		t.Fatalf("expected 2 services, got %d", len(first))
	}
	first[0].ID = "mutated"

	second := reg.All()
	if second[0].ID != "backend" {
		t.Errorf("mutation of returned slice leaked into registry: %q", second[0].ID)
	}
}

func TestGet(t *testing.T) {
	reg := New(seedServices())

	svc, ok := reg.Get("dashboard")
	if !ok {
		t.Fatal("expected dashboard to be found")
	}
	if svc.Name != "Dashboard (Next.js)" {
		t.Errorf("unexpected name %q", svc.Name)
	}

	if _, ok := reg.Get("nope"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestSetStatus(t *testing.T) {
	reg := New(seedServices())
	before, _ := reg.Get("backend")

	reg.SetStatus("backend", models.ServiceStatusRunning)

	after, _ := reg.Get("backend")
	if after.Status != models.ServiceStatusRunning {
		t.Errorf("expected running, got %s", after.Status)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Error("expected UpdatedAt to advance")
	}

	// Unknown ids are a no-op.
	reg.SetStatus("nope", models.ServiceStatusRunning)

	other, _ := reg.Get("dashboard")
	if other.Status != models.ServiceStatusStopped {
		t.Errorf("dashboard status changed unexpectedly: %s", other.Status)
	}
}
