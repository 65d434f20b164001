// Package api exposes the panel over HTTP: service control, log
// queries and streaming, container passthrough, and system metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/panelkit/devpanel/internal/dockerproxy"
	"github.com/panelkit/devpanel/internal/logs"
	"github.com/panelkit/devpanel/internal/registry"
	"github.com/panelkit/devpanel/internal/supervisor"
)

// Server wires the panel's components behind the HTTP routes.
type Server struct {
	registry *registry.Registry
	sup      *supervisor.Supervisor
	logs     *logs.Manager
	docker   *dockerproxy.Proxy // nil when no engine is reachable
	log      *slog.Logger

	handler http.Handler
	http    *http.Server
}

// New builds a Server over the given components. docker may be nil;
// the container routes then answer 503.
func New(reg *registry.Registry, sup *supervisor.Supervisor, logMgr *logs.Manager, docker *dockerproxy.Proxy, log *slog.Logger) *Server {
	s := &Server{
		registry: reg,
		sup:      sup,
		logs:     logMgr,
		docker:   docker,
		log:      log,
	}
	// Wrapping outside the router keeps CORS preflights and request
	// logging working for unmatched paths too.
	s.handler = allowCORS(s.logRequests(s.routes()))
	return s
}

// Handler returns the full middleware and route chain, mainly for
// tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("http server listening", "addr", addr)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	api.HandleFunc("/services/{id}/start", s.handleStartService).Methods(http.MethodPost)
	api.HandleFunc("/services/{id}/stop", s.handleStopService).Methods(http.MethodPost)
	api.HandleFunc("/services/{id}/restart", s.handleRestartService).Methods(http.MethodPost)
	api.HandleFunc("/services/{id}/status", s.handleServiceStatus).Methods(http.MethodGet)
	api.HandleFunc("/services/{id}/logs/stream", s.handleServiceLogStream).Methods(http.MethodGet)
	api.HandleFunc("/services/{id}/logs", s.handleServiceLogs).Methods(http.MethodGet)
	api.HandleFunc("/services/{id}/metrics", s.handleServiceMetrics).Methods(http.MethodGet)
	api.HandleFunc("/services/{id}", s.handleServiceDetail).Methods(http.MethodGet)

	api.HandleFunc("/logs/combined/stream", s.handleCombinedLogStream).Methods(http.MethodGet)
	api.HandleFunc("/logs/combined", s.handleCombinedLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs/cleanup", s.handleLogCleanup).Methods(http.MethodPost)
	api.HandleFunc("/logs/stats", s.handleLogStats).Methods(http.MethodGet)

	api.HandleFunc("/containers", s.handleListContainers).Methods(http.MethodGet)
	api.HandleFunc("/containers/{id}/start", s.handleStartContainer).Methods(http.MethodPost)
	api.HandleFunc("/containers/{id}/stop", s.handleStopContainer).Methods(http.MethodPost)
	api.HandleFunc("/containers/{id}/restart", s.handleRestartContainer).Methods(http.MethodPost)
	api.HandleFunc("/containers/{id}/logs", s.handleContainerLogs).Methods(http.MethodGet)

	api.HandleFunc("/system/metrics", s.handleSystemMetrics).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowCORS lets the dashboard and TUI talk to the API from other
// local ports.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
