// ABOUTME: Token persistence methods for the catalog store
// ABOUTME: Insert, lookup, partial update and filtered listing of tokens

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertToken inserts a pending token row for the given owner and logical
// database name. The token string and activation code are attached later by
// the lifecycle manager; a freshly inserted row is unusable.
// Returns ErrDuplicateDatabaseName if the owner already has a token for
// this database name. A different owner may reuse the same name.
func (s *Store) InsertToken(ctx context.Context, userID int64, databaseName string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM token WHERE user_id = ? AND database_name = ?
	`, userID, databaseName).Scan(&exists)
	if err == nil {
		return nil, ErrDuplicateDatabaseName
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking database name: %w", err)
	}

	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO token (user_id, database_name, created_at, active)
		VALUES (?, ?, ?, 0)
	`, userID, databaseName, createdAt.Format(timeFormat))
	if err != nil {
		// Backstop for the UNIQUE(user_id, database_name) constraint
		if isConstraintViolation(err) {
			return nil, ErrDuplicateDatabaseName
		}
		return nil, fmt.Errorf("inserting token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading token id: %w", err)
	}

	s.logger.Debug("inserted pending token", "id", id, "user_id", userID, "database", databaseName)
	return &Token{
		ID:           id,
		UserID:       userID,
		DatabaseName: databaseName,
		CreatedAt:    createdAt,
	}, nil
}

// GetTokenByID retrieves a token by id.
// Returns ErrNotFound if no token matches.
func (s *Store) GetTokenByID(ctx context.Context, id int64) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanToken(s.db.QueryRowContext(ctx, `
		SELECT token_id, user_id, token, database_name, created_at, active,
		       activation_code, activation_code_expiry
		FROM token WHERE token_id = ?
	`, id))
}

// GetTokenByString retrieves a token by its exact signed token string.
// Returns ErrNotFound if no token matches.
func (s *Store) GetTokenByString(ctx context.Context, tokenString string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanToken(s.db.QueryRowContext(ctx, `
		SELECT token_id, user_id, token, database_name, created_at, active,
		       activation_code, activation_code_expiry
		FROM token WHERE token = ?
	`, tokenString))
}

// UpdateToken applies a partial field set to an existing token.
// Returns ErrNotFound if the token doesn't exist and ErrUpdateFailed when
// the statement does not reach storage.
func (s *Store) UpdateToken(ctx context.Context, id int64, update TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any

	if update.TokenString != nil {
		sets = append(sets, "token = ?")
		args = append(args, *update.TokenString)
	}
	if update.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, boolToInt(*update.Active))
	}
	if update.ActivationCode != nil {
		sets = append(sets, "activation_code = ?")
		args = append(args, nullString(*update.ActivationCode))
	}
	if update.ActivationCodeExpiry != nil {
		sets = append(sets, "activation_code_expiry = ?")
		args = append(args, update.ActivationCodeExpiry.UTC().Format(timeFormat))
	}
	if update.ClearActivation {
		sets = append(sets, "activation_code = NULL", "activation_code_expiry = NULL")
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := "UPDATE token SET " + strings.Join(sets, ", ") + " WHERE token_id = ?"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated token", "id", id)
	return nil
}

// ListTokens returns tokens matching the filter, ordered by insertion.
func (s *Store) ListTokens(ctx context.Context, filter TokenFilter) ([]*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT token_id, user_id, token, database_name, created_at, active,
		       activation_code, activation_code_expiry
		FROM token
	`
	var where []string
	var args []any
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.TokenString != nil {
		where = append(where, "token = ?")
		args = append(args, *filter.TokenString)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY token_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t, err := scanTokenRow(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}
	return tokens, nil
}

// scanner abstracts *sql.Row and *sql.Rows for token scanning
type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanToken(row *sql.Row) (*Token, error) {
	t, err := scanTokenRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func scanTokenRow(row scanner) (*Token, error) {
	var t Token
	var active int
	var createdAtStr string
	var tokenStr, code, expiry sql.NullString

	err := row.Scan(&t.ID, &t.UserID, &tokenStr, &t.DatabaseName, &createdAtStr, &active, &code, &expiry)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning token: %w", err)
	}

	t.Active = active != 0
	t.TokenString = tokenStr.String
	t.ActivationCode = code.String

	t.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if expiry.Valid {
		parsed, err := time.Parse(timeFormat, expiry.String)
		if err != nil {
			return nil, fmt.Errorf("parsing activation_code_expiry: %w", err)
		}
		t.ActivationCodeExpiry = &parsed
	}

	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
