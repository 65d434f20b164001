// Package store provides SQLite-backed persistence for aggregated service logs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/panelkit/devpanel/internal/models"
)

// Store provides access to the devpanel SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		service_id TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_service_id ON logs(service_id);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	CREATE INDEX IF NOT EXISTS idx_logs_service_timestamp ON logs(service_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// fmtTime renders a timestamp in the canonical stored form. RFC 3339 in
// UTC sorts lexicographically, which the timestamp indexes rely on.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseStoredTime reads a stored timestamp back. Rows imported from older
// databases may carry a space-separated form.
func parseStoredTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- Log Operations ---

// InsertLog inserts a single log entry.
func (s *Store) InsertLog(entry models.LogEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO logs (timestamp, service_id, level, message) VALUES (?, ?, ?, ?)`,
		fmtTime(entry.Timestamp), entry.ServiceID, entry.Level, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// InsertBatch inserts a batch of log entries in a single transaction.
// Either every entry lands or none do.
func (s *Store) InsertBatch(entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO logs (timestamp, service_id, level, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(fmtTime(entry.Timestamp), entry.ServiceID, entry.Level, entry.Message); err != nil {
			return fmt.Errorf("insert log batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// buildWhere assembles the WHERE clause shared by QueryLogs and CountLogs.
func buildWhere(f models.LogFilters) (string, []interface{}) {
	query := ""
	var args []interface{}
	add := func(cond string, a ...interface{}) {
		if query == "" {
			query = " WHERE " + cond
		} else {
			query += " AND " + cond
		}
		args = append(args, a...)
	}

	if f.ServiceID != "" {
		add("service_id = ?", f.ServiceID)
	}
	if f.Level != "" && f.Level != "all" {
		add("lower(level) = lower(?)", f.Level)
	}
	if f.Since != nil {
		add("timestamp >= ?", fmtTime(*f.Since))
	}
	if f.Until != nil {
		add("timestamp <= ?", fmtTime(*f.Until))
	}
	if f.Search != "" {
		add("message LIKE ?", "%"+f.Search+"%")
	}
	return query, args
}

// QueryLogs returns entries matching the filters in chronological order.
// Limit and Offset page backwards from the newest entry, so the last page
// element is always the most recent match.
func (s *Store) QueryLogs(filters models.LogFilters) ([]models.LogEntry, error) {
	where, args := buildWhere(filters)

	limit := filters.Limit
	if limit <= 0 {
		limit = 1000
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, timestamp, service_id, level, message FROM logs` + where +
		` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var ts string
		if err := rows.Scan(&entry.ID, &ts, &entry.ServiceID, &entry.Level, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entry.Timestamp = parseStoredTime(ts)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want oldest-first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// CountLogs returns the number of entries matching the filters.
func (s *Store) CountLogs(filters models.LogFilters) (int, error) {
	where, args := buildWhere(filters)

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM logs`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return count, nil
}

// GetLogStats returns aggregate counts: "total", one "service_<id>" key
// per service, and one "level_<level>" key per level.
func (s *Store) GetLogStats() (map[string]int, error) {
	stats := make(map[string]int)

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM logs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}
	stats["total"] = total

	rows, err := s.db.Query(`SELECT service_id, COUNT(*) FROM logs GROUP BY service_id`)
	if err != nil {
		return nil, fmt.Errorf("count by service: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan service count: %w", err)
		}
		stats["service_"+id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	levelRows, err := s.db.Query(`SELECT level, COUNT(*) FROM logs GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("count by level: %w", err)
	}
	defer levelRows.Close()
	for levelRows.Next() {
		var level string
		var n int
		if err := levelRows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scan level count: %w", err)
		}
		stats["level_"+level] = n
	}
	return stats, levelRows.Err()
}

// CleanupOldLogs deletes entries older than the given number of days and
// returns how many rows were removed.
func (s *Store) CleanupOldLogs(days int) (int64, error) {
	cutoff := fmtTime(time.Now().UTC().AddDate(0, 0, -days))

	result, err := s.db.Exec(`DELETE FROM logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old logs: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return removed, nil
}
