package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/panelkit/devpanel/internal/logs"
	"github.com/panelkit/devpanel/internal/metrics"
	"github.com/panelkit/devpanel/internal/models"
)

const (
	defaultTailLines    = 100
	defaultFilterLimit  = 1000
	defaultRetentionDay = 30
)

// handleServiceLogs serves one service's logs in two modes. With any
// of level, from, to, or search present it runs a filtered query;
// otherwise it tails the raw log file.
func (s *Server) handleServiceLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	hasFilter := q.Has("level") || q.Has("from") || q.Has("to") || q.Has("search")
	if hasFilter {
		filters := models.LogFilters{
			ServiceID: id,
			Level:     q.Get("level"),
			Search:    q.Get("search"),
			Limit:     intParam(q, "limit", defaultFilterLimit),
		}
		if t, ok := parseTimeParam(q.Get("from")); ok {
			filters.Since = &t
		}
		if t, ok := parseTimeParam(q.Get("to")); ok {
			filters.Until = &t
		}
		matchAny := q.Get("operator") == "or"

		result, err := s.logs.Filtered(filters, matchAny)
		if err != nil {
			s.log.Error("filtered log query failed", "service", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	lines, err := s.logs.TailFile(id, intParam(q, "lines", defaultTailLines))
	if err != nil {
		s.log.Error("log tail failed", "service", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now().UTC()
	entries := make([]models.LogEntry, 0, len(lines))
	for _, line := range lines {
		level, ts := logs.ParseLine(line, now)
		entries = append(entries, models.LogEntry{
			Timestamp: ts,
			ServiceID: id,
			Level:     level,
			Message:   line,
		})
	}
	s.writeJSON(w, http.StatusOK, models.FilteredLogs{
		Logs:     entries,
		Total:    len(entries),
		Filtered: len(entries),
	})
}

// handleCombinedLogs merges all services. It accepts only level,
// search, and lines, always combined conjunctively.
func (s *Server) handleCombinedLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.LogFilters{
		Level:  q.Get("level"),
		Search: q.Get("search"),
		Limit:  intParam(q, "lines", defaultTailLines),
	}

	result, err := s.logs.Combined(filters, false)
	if err != nil {
		s.log.Error("combined log query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogCleanup(w http.ResponseWriter, r *http.Request) {
	st := s.logs.Store()
	if st == nil {
		s.writeError(w, http.StatusServiceUnavailable, "log database unavailable")
		return
	}

	days := intParam(r.URL.Query(), "days", defaultRetentionDay)
	deleted, err := st.CleanupOldLogs(days)
	if err != nil {
		s.log.Error("log cleanup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("log cleanup finished", "deleted", deleted, "days", days)
	s.writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted, "days": int64(days)})
}

func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	st := s.logs.Store()
	if st == nil {
		s.writeError(w, http.StatusServiceUnavailable, "log database unavailable")
		return
	}

	stats, err := st.GetLogStats()
	if err != nil {
		s.log.Error("log stats query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := metrics.SystemMetrics(r.Context())
	if err != nil {
		s.log.Error("system metrics failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func intParam(q url.Values, key string, fallback int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// parseTimeParam accepts RFC 3339 plus a couple of forgiving local
// forms so shell users do not have to type the T and Z.
func parseTimeParam(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
