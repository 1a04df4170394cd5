package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// defaultRecentLimit and maxRecentLimit bound Recent queries.
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// schema creates the publications table on first open.
const schema = `
CREATE TABLE IF NOT EXISTS publications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	circuit    TEXT NOT NULL,
	name       TEXT NOT NULL,
	topic      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_publications_message
	ON publications(circuit, name, created_at);
`

// Config contains history store configuration options.
// These map to the history section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Entry is one recorded publication.
type Entry struct {
	ID        int64
	Circuit   string
	Name      string
	Topic     string
	Payload   string
	CreatedAt time.Time
}

// Store records published message values in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the history store with the specified configuration.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Creates the schema and sets file permissions (0600)
//
// Returns:
//   - *Store: Ready store
//   - error: If connection or schema creation fails
func Open(cfg Config) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{db: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying history database connection: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	// Owner read/write only
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // First run creates file later

	return s, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing history database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Record inserts a publication entry.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - circuit, name: Bus message identity
//   - topic: The MQTT topic the payload was published to
//   - payload: The published string
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Record(ctx context.Context, circuit, name, topic, payload string) error {
	if circuit == "" || name == "" {
		return fmt.Errorf("circuit and name are required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO publications (circuit, name, topic, payload) VALUES (?, ?, ?, ?)",
		circuit, name, topic, payload,
	)
	if err != nil {
		return fmt.Errorf("inserting publication: %w", err)
	}

	return nil
}

// Recent returns recent publications for a message, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - circuit, name: Bus message identity
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *Store) Recent(ctx context.Context, circuit, name string, limit int) ([]Entry, error) {
	if circuit == "" || name == "" {
		return nil, fmt.Errorf("circuit and name are required")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, circuit, name, topic, payload, created_at
		 FROM publications
		 WHERE circuit = ? AND name = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		circuit, name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Circuit, &entry.Name, &entry.Topic, &entry.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publications: %w", err)
	}

	return entries, nil
}

// Prune deletes publications older than the given duration.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM publications WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting publications: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// HealthCheck verifies the database is accessible and functioning.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("history health check failed: %w", err)
	}
	return nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
