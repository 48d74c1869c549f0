// ABOUTME: SQLite-backed catalog store using modernc.org/sqlite
// ABOUTME: Single shared connection guarded by one process-wide mutex

package catalog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is the storage format for all catalog timestamps.
const timeFormat = time.RFC3339

// Store is the single source of truth for users, tokens and uses. All
// methods serialize on one mutex: catalog integrity (unique email, unique
// owner+database pair) depends on read-then-write atomicity that the
// engine alone does not guarantee under concurrent access.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the catalog database at the given path.
// Parent directories are created if needed.
func Open(path string) (*Store, error) {
	logger := slog.Default().With("component", "catalog")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("catalog store initialized", "path", path)
	return s, nil
}

// createSchema creates the catalog tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS user (
			user_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			full_name     TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			active        INTEGER NOT NULL DEFAULT 1,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_user_email ON user(email);

		CREATE TABLE IF NOT EXISTS token (
			token_id               INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                INTEGER NOT NULL REFERENCES user(user_id),
			token                  TEXT,
			database_name          TEXT NOT NULL,
			created_at             TEXT NOT NULL,
			active                 INTEGER NOT NULL DEFAULT 0,
			activation_code        TEXT,
			activation_code_expiry TEXT,

			UNIQUE(user_id, database_name)
		);

		CREATE INDEX IF NOT EXISTS idx_token_user ON token(user_id);
		CREATE INDEX IF NOT EXISTS idx_token_token ON token(token);

		CREATE TABLE IF NOT EXISTS use (
			use_id     INTEGER PRIMARY KEY AUTOINCREMENT,
			token_id   INTEGER NOT NULL REFERENCES token(token_id),
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_use_token ON use(token_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the catalog connection
func (s *Store) Close() error {
	s.logger.Info("closing catalog store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
