// ABOUTME: User persistence methods for the catalog store
// ABOUTME: Creation and lookup by id or email with parameterized statements

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateUser inserts a new user and returns the stored row.
// Returns ErrDuplicateEmail if the email is already registered. The
// password must already be hashed; the catalog never receives plaintext.
func (s *Store) CreateUser(ctx context.Context, fullName, email, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := time.Now().UTC()
	query := `
		INSERT INTO user (full_name, email, active, password_hash, created_at)
		VALUES (?, ?, 1, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		fullName,
		email,
		passwordHash,
		createdAt.Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Debug("created user", "id", id, "email", email)
	return &User{
		ID:           id,
		FullName:     fullName,
		Email:        email,
		Active:       true,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

// GetUserByID retrieves a user by id.
// Returns ErrNotFound if no user matches.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, email, active, password_hash, created_at
		FROM user WHERE user_id = ?
	`, id))
}

// GetUserByEmail retrieves a user by email.
// Returns ErrNotFound if no user matches.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, email, active, password_hash, created_at
		FROM user WHERE email = ?
	`, email))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var active int
	var createdAtStr string

	err := row.Scan(&u.ID, &u.FullName, &u.Email, &active, &u.PasswordHash, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Active = active != 0
	u.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &u, nil
}
