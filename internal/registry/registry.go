// Package registry holds the service descriptors detected for one
// panel session and the manifest scan that produces them.
package registry

import (
	"sync"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

// Registry is the in-memory service list. Descriptors are created once
// at boot by Detect; afterwards only status fields change.
type Registry struct {
	mu       sync.RWMutex
	services []models.Service
}

// New creates a Registry over the given descriptors.
func New(services []models.Service) *Registry {
	return &Registry{services: services}
}

// All returns a copy of every descriptor in detection order.
func (r *Registry) All() []models.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Service, len(r.services))
	copy(out, r.services)
	return out
}

// Get returns one descriptor by id.
func (r *Registry) Get(id string) (models.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, svc := range r.services {
		if svc.ID == id {
			return svc, true
		}
	}
	return models.Service{}, false
}

// SetStatus records a lifecycle transition for one service. Unknown
// ids are ignored.
func (r *Registry) SetStatus(id string, status models.ServiceStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.services {
		if r.services[i].ID == id {
			r.services[i].Status = status
			r.services[i].UpdatedAt = time.Now().UTC()
			return
		}
	}
}
