package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/panelkit/devpanel/internal/models"
)

// handleListServices returns every known service with its live status
// overlaid. The registry itself is not mutated here; only start and
// stop record transitions.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services := s.registry.All()
	for i := range services {
		if status, ok := s.sup.Status(services[i].ID); ok {
			services[i].Status = status
		}
	}
	s.writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleStartService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	svc, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown service: "+id)
		return
	}

	if err := s.sup.Start(svc); err != nil {
		s.log.Error("start service failed", "service", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The spawn settled, so the supervisor knows the real status; fall
	// back to running if it somehow does not.
	status, ok := s.sup.Status(id)
	if !ok {
		status = models.ServiceStatusRunning
	}
	s.registry.SetStatus(id, status)

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started", "service_id": id})
}

func (s *Server) handleStopService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.sup.Stop(id); err != nil {
		s.log.Error("stop service failed", "service", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.registry.SetStatus(id, models.ServiceStatusStopped)

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "service_id": id})
}

func (s *Server) handleRestartService(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.sup.Restart(id); err != nil {
		s.log.Error("restart service failed", "service", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "restarted", "service_id": id})
}

// handleServiceStatus answers with the supervisor's view only; a
// service it has never touched is a 404 here even when detected.
func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, ok := s.sup.Status(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "service not supervised: "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleServiceDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	svc, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown service: "+id)
		return
	}
	if status, ok := s.sup.Status(id); ok {
		svc.Status = status
	}
	s.writeJSON(w, http.StatusOK, svc)
}

// handleServiceMetrics returns live process figures, or a zeroed
// stopped snapshot for a service that exists but was never started.
func (s *Server) handleServiceMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, ok := s.registry.Get(id); !ok {
		s.writeError(w, http.StatusNotFound, "unknown service: "+id)
		return
	}

	if info, ok := s.sup.Info(id); ok {
		s.writeJSON(w, http.StatusOK, info)
		return
	}
	s.writeJSON(w, http.StatusOK, models.ProcessInfo{Status: models.ServiceStatusStopped})
}
