// ABOUTME: Entity types and sentinel errors for the catalog store
// ABOUTME: Defines User, Token, Use structs shared by lifecycle, gateway and CLI

package catalog

import (
	"crypto/subtle"
	"errors"
	"time"
)

// Catalog errors
var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when creating a user with an email
	// that is already registered. Callers surface it as a generic
	// "could not create user" message; the sentinel stays internal.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateDatabaseName is returned when the owner already has a
	// token for the same logical database name
	ErrDuplicateDatabaseName = errors.New("database name already in use")

	// ErrUpdateFailed is returned when a token update does not reach storage
	ErrUpdateFailed = errors.New("token update failed")
)

// User is the identity anchor. It owns zero or more tokens and is never
// hard-deleted, only deactivated.
type User struct {
	ID           int64
	FullName     string
	Email        string
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
}

// CheckPasswordHash compares a presented password hash against the stored
// one in constant time. The catalog never sees plaintext passwords.
func (u *User) CheckPasswordHash(hash string) bool {
	return subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(hash)) == 1
}

// Token is a signed credential scoping access to exactly one tenant
// database. It starts pending with an activation code and becomes active
// once the code is verified; there is no transition back and no revocation.
type Token struct {
	ID                   int64
	UserID               int64
	TokenString          string
	DatabaseName         string
	CreatedAt            time.Time
	Active               bool
	ActivationCode       string
	ActivationCodeExpiry *time.Time
}

// Use is an append-only audit record of one authenticated query. Immutable
// once written.
type Use struct {
	ID        int64
	TokenID   int64
	Data      string
	CreatedAt time.Time
}

// TokenUpdate is a partial field set for UpdateToken. Nil pointers leave
// the column untouched; ClearActivation wipes both the code and its expiry.
type TokenUpdate struct {
	TokenString          *string
	Active               *bool
	ActivationCode       *string
	ActivationCodeExpiry *time.Time
	ClearActivation      bool
}

// TokenFilter selects tokens in ListTokens. Zero-value filter lists all.
type TokenFilter struct {
	UserID      *int64
	TokenString *string
}

// UseFilter selects audit records in ListUses.
type UseFilter struct {
	TokenID *int64
	Limit   int
}
