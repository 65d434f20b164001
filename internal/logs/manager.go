package logs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vawter.tech/stopper"

	"github.com/panelkit/devpanel/internal/models"
	"github.com/panelkit/devpanel/internal/store"
)

// ErrServiceNotFound marks queries against a service id no log file is
// registered for.
var ErrServiceNotFound = errors.New("service log file not found")

// Manager owns one tailer task per registered service. Each tailer
// polls the service's log file, publishes new complete lines to the
// Hub, and queues them for durable storage. The file-offset table and
// the tailer registry are guarded by separate locks so an offset
// update never blocks registration.
type Manager struct {
	log      *slog.Logger
	logsDir  string
	interval time.Duration
	hub      *Hub
	store    *store.Store  // nil when the durable store is unavailable
	writer   *store.Writer // nil when store is nil
	ctx      *stopper.Context

	offMu   sync.RWMutex
	offsets map[string]int64

	svcMu    sync.RWMutex
	services map[string]chan struct{} // service id -> tailer stop signal
}

// NewManager creates a Manager. A nil store switches every historical
// query to the raw-file path. Tailer goroutines run under ctx and stop
// with it.
func NewManager(ctx *stopper.Context, logsDir string, interval time.Duration, hub *Hub, st *store.Store, w *store.Writer, log *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	return &Manager{
		log:      log,
		logsDir:  logsDir,
		interval: interval,
		hub:      hub,
		store:    st,
		writer:   w,
		ctx:      ctx,
		offsets:  make(map[string]int64),
		services: make(map[string]chan struct{}),
	}, nil
}

// Hub returns the broadcast hub serving this manager's entries.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Store returns the durable store, or nil when unavailable.
func (m *Manager) Store() *store.Store {
	return m.store
}

// LogPath returns the service's log file location.
func (m *Manager) LogPath(serviceID string) string {
	return filepath.Join(m.logsDir, serviceID+".log")
}

// RegisterService ensures the service's log file exists and starts its
// tailer. Tailing begins at the file's current end; content already on
// disk is only ingested by MigrateFromFile. Registering twice is a no-op.
func (m *Manager) RegisterService(serviceID string) error {
	path := m.LogPath(serviceID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	f.Close()

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	m.svcMu.Lock()
	if _, exists := m.services[serviceID]; exists {
		m.svcMu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	m.services[serviceID] = stop
	m.svcMu.Unlock()

	m.setOffset(serviceID, size)

	m.ctx.Go(func(ctx *stopper.Context) error {
		m.tail(ctx, serviceID, stop)
		return nil
	})
	return nil
}

// UnregisterService stops the service's tailer and forgets its offset.
func (m *Manager) UnregisterService(serviceID string) {
	m.svcMu.Lock()
	stop, ok := m.services[serviceID]
	if ok {
		delete(m.services, serviceID)
	}
	m.svcMu.Unlock()

	if ok {
		close(stop)
	}

	m.offMu.Lock()
	delete(m.offsets, serviceID)
	m.offMu.Unlock()
}

// ServiceIDs returns the ids of all registered services.
func (m *Manager) ServiceIDs() []string {
	m.svcMu.RLock()
	defer m.svcMu.RUnlock()

	ids := make([]string, 0, len(m.services))
	for id := range m.services {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) registered(serviceID string) bool {
	m.svcMu.RLock()
	defer m.svcMu.RUnlock()
	_, ok := m.services[serviceID]
	return ok
}

func (m *Manager) offset(serviceID string) int64 {
	m.offMu.RLock()
	defer m.offMu.RUnlock()
	return m.offsets[serviceID]
}

func (m *Manager) setOffset(serviceID string, off int64) {
	m.offMu.Lock()
	m.offsets[serviceID] = off
	m.offMu.Unlock()
}

// tail polls the log file until the service is unregistered or the
// daemon stops.
func (m *Manager) tail(ctx *stopper.Context, serviceID string, stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Stopping():
			return
		case <-stop:
			return
		case <-ticker.C:
			for _, e := range m.readNew(serviceID) {
				m.hub.Publish(e)
				if m.writer != nil {
					m.writer.Enqueue(e)
				}
			}
		}
	}
}

// readNew reads lines appended since the stored offset. Only lines
// ending in a newline are consumed; an unterminated tail is left for a
// later poll so a line racing the child's write is never split.
func (m *Manager) readNew(serviceID string) []models.LogEntry {
	f, err := os.Open(m.LogPath(serviceID))
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil
	}
	size := info.Size()

	offset := m.offset(serviceID)
	if size <= offset {
		return nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		offset = 0
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil
		}
	}

	data, err := io.ReadAll(io.LimitReader(f, size-offset))
	if err != nil {
		m.log.Debug("failed to read log file", "service", serviceID, "error", err)
		return nil
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}
	m.setOffset(serviceID, offset+int64(end)+1)

	now := time.Now().UTC()
	var entries []models.LogEntry
	for _, line := range strings.Split(string(data[:end]), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		level, ts := ParseLine(line, now)
		entries = append(entries, models.LogEntry{
			Timestamp: ts,
			ServiceID: serviceID,
			Level:     level,
			Message:   line,
		})
	}
	return entries
}

// TailFile returns the last n raw lines of the service's log file, or
// every line when n <= 0.
func (m *Manager) TailFile(serviceID string, n int) ([]string, error) {
	if !m.registered(serviceID) {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}

	lines, err := m.readAllLines(serviceID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func (m *Manager) readAllLines(serviceID string) ([]string, error) {
	data, err := os.ReadFile(m.LogPath(serviceID))
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Filtered serves a historical query. The durable store answers it with
// strict AND semantics; when the store is unavailable or the query
// fails, the raw files answer instead, where matchAny selects OR across
// the level, time, and search predicates.
func (m *Manager) Filtered(filters models.LogFilters, matchAny bool) (*models.FilteredLogs, error) {
	if m.store != nil {
		entries, err := m.store.QueryLogs(filters)
		if err == nil {
			total, cerr := m.store.CountLogs(models.LogFilters{ServiceID: filters.ServiceID})
			if cerr != nil {
				total = len(entries)
			}
			return &models.FilteredLogs{Logs: entries, Total: total, Filtered: len(entries)}, nil
		}
		m.log.Debug("log store query failed, using file fallback", "error", err)
	}
	return m.searchFiles(filters, matchAny)
}

// Combined is Filtered across every service.
func (m *Manager) Combined(filters models.LogFilters, matchAny bool) (*models.FilteredLogs, error) {
	filters.ServiceID = ""
	return m.Filtered(filters, matchAny)
}

// MigrateFromFile reads the service's whole log file and batch-inserts
// it into the store. Returns the number of entries inserted. With no
// store available it inserts nothing and reports zero.
func (m *Manager) MigrateFromFile(serviceID string) (int, error) {
	if m.store == nil {
		m.log.Warn("log store unavailable, skipping migration", "service", serviceID)
		return 0, nil
	}
	if !m.registered(serviceID) {
		return 0, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}

	lines, err := m.readAllLines(serviceID)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	entries := make([]models.LogEntry, 0, len(lines))
	for _, line := range lines {
		level, ts := ParseLine(line, now)
		entries = append(entries, models.LogEntry{
			Timestamp: ts,
			ServiceID: serviceID,
			Level:     level,
			Message:   line,
		})
	}

	if err := m.store.InsertBatch(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// MigrateAll migrates every registered service's file, continuing past
// per-service failures, and returns the total inserted.
func (m *Manager) MigrateAll() int {
	total := 0
	for _, id := range m.ServiceIDs() {
		count, err := m.MigrateFromFile(id)
		if err != nil {
			m.log.Warn("failed to migrate logs", "service", id, "error", err)
			continue
		}
		if count > 0 {
			m.log.Info("migrated file logs to store", "service", id, "count", count)
		}
		total += count
	}
	return total
}
