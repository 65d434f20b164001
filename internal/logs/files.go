package logs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

// searchFiles re-derives entries from the raw log files. The service
// filter selects which files are read; the remaining predicates are
// combined with AND, or with OR when matchAny is set.
func (m *Manager) searchFiles(filters models.LogFilters, matchAny bool) (*models.FilteredLogs, error) {
	var ids []string
	if filters.ServiceID != "" {
		if !m.registered(filters.ServiceID) {
			return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, filters.ServiceID)
		}
		ids = []string{filters.ServiceID}
	} else {
		ids = m.ServiceIDs()
	}

	now := time.Now().UTC()
	var all []models.LogEntry
	for _, id := range ids {
		lines, err := m.readAllLines(id)
		if err != nil {
			continue
		}
		for _, line := range lines {
			level, ts := ParseLine(line, now)
			all = append(all, models.LogEntry{
				Timestamp: ts,
				ServiceID: id,
				Level:     level,
				Message:   line,
			})
		}
	}

	total := len(all)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	var matched []models.LogEntry
	for _, e := range all {
		if matchEntry(e, filters, matchAny) {
			matched = append(matched, e)
		}
	}

	page := pageNewest(matched, filters.Limit, filters.Offset)
	return &models.FilteredLogs{Logs: page, Total: total, Filtered: len(page)}, nil
}

// matchEntry evaluates the level, time-bound, and search predicates.
// With no predicates set every entry matches regardless of mode.
func matchEntry(e models.LogEntry, f models.LogFilters, matchAny bool) bool {
	var checks []bool
	if f.Level != "" && !strings.EqualFold(f.Level, "all") {
		checks = append(checks, strings.EqualFold(e.Level, f.Level))
	}
	if f.Since != nil {
		checks = append(checks, !e.Timestamp.Before(*f.Since))
	}
	if f.Until != nil {
		checks = append(checks, !e.Timestamp.After(*f.Until))
	}
	if f.Search != "" {
		checks = append(checks, strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Search)))
	}

	if len(checks) == 0 {
		return true
	}
	if matchAny {
		for _, ok := range checks {
			if ok {
				return true
			}
		}
		return false
	}
	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}

// pageNewest pages backwards from the newest entry, mirroring the
// durable store: the returned slice stays oldest-first and its last
// element is the most recent match of the page.
func pageNewest(entries []models.LogEntry, limit, offset int) []models.LogEntry {
	if limit <= 0 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	end := len(entries) - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return entries[start:end]
}
