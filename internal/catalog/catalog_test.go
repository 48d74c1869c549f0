package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary catalog store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "catalog.db")

	store, err := Open(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_CreateUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "Alice Example", "alice@example.com", "abc123hash")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, user.Active)

	retrieved, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, retrieved.ID)
	assert.Equal(t, "Alice Example", retrieved.FullName)
	assert.Equal(t, "abc123hash", retrieved.PasswordHash)
}

func TestStore_CreateUser_DuplicateEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "Alice", "alice@example.com", "h1")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, "Other Alice", "alice@example.com", "h2")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUserByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUser_CheckPasswordHash(t *testing.T) {
	u := &User{PasswordHash: "deadbeef"}
	assert.True(t, u.CheckPasswordHash("deadbeef"))
	assert.False(t, u.CheckPasswordHash("deadbeee"))
	assert.False(t, u.CheckPasswordHash(""))
}
