// ABOUTME: Append-only use (audit) records for authenticated queries
// ABOUTME: InsertUse resolves the token string to its row via a join and never raises

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertUse appends an audit record for the token identified by its signed
// string. It reports success rather than returning an error: audit-logging
// failure must never abort the client-visible response that triggered it,
// so callers log the false return at most.
func (s *Store) InsertUse(ctx context.Context, tokenString, data string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO use (token_id, data, created_at)
		SELECT token_id, ?, ? FROM token WHERE token = ?
	`, data, time.Now().UTC().Format(timeFormat), tokenString)
	if err != nil {
		s.logger.Warn("inserting use record failed", "error", err)
		return false
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil || rowsAffected == 0 {
		s.logger.Warn("use record not written", "rows", rowsAffected, "error", err)
		return false
	}

	return true
}

// ListUses returns audit records matching the filter, oldest first.
// If Limit is 0 or negative, a default limit of 100 is used.
func (s *Store) ListUses(ctx context.Context, filter UseFilter) ([]*Use, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `SELECT use_id, token_id, data, created_at FROM use`
	var where []string
	var args []any
	if filter.TokenID != nil {
		where = append(where, "token_id = ?")
		args = append(args, *filter.TokenID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY use_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying uses: %w", err)
	}
	defer rows.Close()

	var uses []*Use
	for rows.Next() {
		var u Use
		var createdAtStr string
		if err := rows.Scan(&u.ID, &u.TokenID, &u.Data, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning use row: %w", err)
		}
		u.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		uses = append(uses, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating use rows: %w", err)
	}
	return uses, nil
}
