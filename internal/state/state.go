// Package state persists the supervisor's view of running services so
// they can be re-adopted after a daemon restart.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/panelkit/devpanel/internal/models"
)

// Store reads and writes the JSON state snapshot. Writes are atomic
// via rename so a crash mid-write never leaves a truncated file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store backed by the given snapshot path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing or empty file yields an empty
// snapshot with no error. A corrupt or unreadable file also yields an
// empty snapshot, with the cause returned so the caller can log it;
// recovery must never fail because of a bad snapshot.
func (s *Store) Load() (*models.StateFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the snapshot with the given services.
func (s *Store) Save(services []models.ServiceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(services)
}

// Upsert records or refreshes the entry for one service, keyed by
// service id, leaving all other entries untouched.
func (s *Store) Upsert(st models.ServiceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}

	services := make([]models.ServiceState, 0, len(sf.Services)+1)
	for _, existing := range sf.Services {
		if existing.ServiceID != st.ServiceID {
			services = append(services, existing)
		}
	}
	services = append(services, st)

	return s.save(services)
}

// Remove drops the entry for one service. Removing an id that has no
// entry rewrites the snapshot unchanged.
func (s *Store) Remove(serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}

	services := make([]models.ServiceState, 0, len(sf.Services))
	for _, existing := range sf.Services {
		if existing.ServiceID != serviceID {
			services = append(services, existing)
		}
	}

	return s.save(services)
}

func (s *Store) load() (*models.StateFile, error) {
	empty := &models.StateFile{Services: []models.ServiceState{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return empty, fmt.Errorf("read state file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return empty, nil
	}

	var sf models.StateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return empty, fmt.Errorf("parse state file: %w", err)
	}
	if sf.Services == nil {
		sf.Services = []models.ServiceState{}
	}
	return &sf, nil
}

func (s *Store) save(services []models.ServiceState) error {
	if services == nil {
		services = []models.ServiceState{}
	}
	sf := models.StateFile{
		Services:  services,
		UpdatedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
