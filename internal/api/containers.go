package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// engineAvailable answers 503 for every container route when the
// daemon came up without a reachable Docker engine.
func (s *Server) engineAvailable(w http.ResponseWriter) bool {
	if s.docker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "docker engine unavailable")
		return false
	}
	return true
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	if !s.engineAvailable(w) {
		return
	}

	containers, err := s.docker.ListContainers(r.Context())
	if err != nil {
		s.log.Error("list containers failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, containers)
}

func (s *Server) handleStartContainer(w http.ResponseWriter, r *http.Request) {
	if !s.engineAvailable(w) {
		return
	}
	id := mux.Vars(r)["id"]

	if err := s.docker.StartContainer(r.Context(), id); err != nil {
		s.log.Error("start container failed", "container", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started", "container_id": id})
}

func (s *Server) handleStopContainer(w http.ResponseWriter, r *http.Request) {
	if !s.engineAvailable(w) {
		return
	}
	id := mux.Vars(r)["id"]

	if err := s.docker.StopContainer(r.Context(), id); err != nil {
		s.log.Error("stop container failed", "container", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "container_id": id})
}

func (s *Server) handleRestartContainer(w http.ResponseWriter, r *http.Request) {
	if !s.engineAvailable(w) {
		return
	}
	id := mux.Vars(r)["id"]

	if err := s.docker.RestartContainer(r.Context(), id); err != nil {
		s.log.Error("restart container failed", "container", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "restarted", "container_id": id})
}

func (s *Server) handleContainerLogs(w http.ResponseWriter, r *http.Request) {
	if !s.engineAvailable(w) {
		return
	}
	id := mux.Vars(r)["id"]
	tail := intParam(r.URL.Query(), "tail", defaultTailLines)

	lines, err := s.docker.ContainerLogs(r.Context(), id, tail)
	if err != nil {
		s.log.Error("container logs failed", "container", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, lines)
}
