// Package catalog provides the control-plane store backed by SQLite.
//
// # Data Models
//
//   - User: registered owner of tenant databases, with a hashed password
//   - Token: access credential for one logical database, pending until
//     its activation code is verified
//   - Use: append-only audit record of one gateway call
//
// Store implements all operations in a single struct over one database
// file. Operations are serialized through an internal mutex.
//
// # Error Handling
//
// Lookups that find nothing return ErrNotFound. Uniqueness violations
// surface as ErrDuplicateEmail and ErrDuplicateDatabaseName so callers
// can decide how much to reveal. All other failures are wrapped with
// context via fmt.Errorf("%w").
package catalog
