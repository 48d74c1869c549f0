// ABOUTME: Per-tenant database files and ad-hoc statement execution
// ABOUTME: Resolves (owner, database name) to a confined path and serializes per-file access

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/tokendb/internal/envelope"
)

// ErrPathEscape is returned when a crafted owner or database name would
// resolve outside the configured root directory.
var ErrPathEscape = errors.New("database path escapes tenant root")

// DefaultQueryTimeout bounds a single statement when the config does not
// say otherwise.
const DefaultQueryTimeout = 30 * time.Second

// Store executes statements against per-tenant database files under a
// fixed root. Statements against the same file are serialized through a
// per-path mutex; different tenants proceed fully in parallel. Connections
// are opened per statement and closed after it (no pool).
type Store struct {
	root    string
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a tenant store rooted at the given directory.
// A zero timeout falls back to DefaultQueryTimeout.
func NewStore(root string, timeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating tenant root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving tenant root: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Store{
		root:    abs,
		timeout: timeout,
		logger:  slog.Default().With("component", "tenant"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Resolve maps (owner, database name) to the tenant file path, rejecting
// any input that would resolve outside the root.
func (s *Store) Resolve(owner, databaseName string) (string, error) {
	if owner == "" || databaseName == "" {
		return "", ErrPathEscape
	}

	path := filepath.Join(s.root, owner, databaseName+".db")

	// Join cleans the path, so traversal sequences collapse; verify the
	// result still lives under the root.
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return path, nil
}

// Execute runs one statement against the tenant's database and wraps the
// outcome in an envelope. No statement-kind pre-validation happens here:
// the store is statement-agnostic and trusts the caller's authorization,
// not the statement's safety. Engine errors become a 400 envelope with the
// engine's message, never a process-level fault.
func (s *Store) Execute(ctx context.Context, owner, databaseName, sqlText string) *envelope.Envelope {
	path, err := s.Resolve(owner, databaseName)
	if err != nil {
		return envelope.Bad(sqlText, err.Error())
	}

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return envelope.Bad(sqlText, fmt.Sprintf("creating tenant directory: %v", err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return envelope.Bad(sqlText, err.Error())
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if isReadStatement(sqlText) {
		return s.executeRead(ctx, db, sqlText)
	}
	return s.executeWrite(ctx, db, sqlText)
}

func (s *Store) executeRead(ctx context.Context, db *sql.DB, sqlText string) *envelope.Envelope {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return envelope.Bad(sqlText, err.Error())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return envelope.Bad(sqlText, err.Error())
	}

	results := []envelope.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return envelope.Bad(sqlText, err.Error())
		}

		row := make(envelope.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return envelope.Bad(sqlText, err.Error())
	}

	return envelope.Good(sqlText, results, nil)
}

func (s *Store) executeWrite(ctx context.Context, db *sql.DB, sqlText string) *envelope.Envelope {
	result, err := db.ExecContext(ctx, sqlText)
	if err != nil {
		return envelope.Bad(sqlText, err.Error())
	}

	if firstKeyword(sqlText) == "insert" {
		lastID, err := result.LastInsertId()
		if err != nil {
			return envelope.Bad(sqlText, err.Error())
		}
		return envelope.Good(sqlText, nil, &lastID)
	}

	return envelope.Good(sqlText, nil, nil)
}

// lockFor returns the mutex serializing access to one tenant file.
// Locks live for the process lifetime; the map only grows with the number
// of distinct tenant files touched.
func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

// isReadStatement reports whether the statement produces a result set.
func isReadStatement(sqlText string) bool {
	switch firstKeyword(sqlText) {
	case "select", "with", "pragma", "explain", "values":
		return true
	}
	return false
}

// firstKeyword returns the lowercased first word of the statement.
func firstKeyword(sqlText string) string {
	fields := strings.Fields(strings.TrimSpace(sqlText))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
