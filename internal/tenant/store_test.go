package tenant

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tokendb/internal/envelope"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)
	return store
}

func TestStore_Resolve(t *testing.T) {
	store := setupTestStore(t)

	path, err := store.Resolve("alice@example.com", "shop")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, store.root+string(filepath.Separator)))
	assert.True(t, strings.HasSuffix(path, filepath.Join("alice@example.com", "shop.db")))
}

func TestStore_Resolve_Traversal(t *testing.T) {
	store := setupTestStore(t)

	cases := []struct {
		owner string
		db    string
	}{
		{"alice@example.com", "../../etc/passwd"},
		{"../..", "shop"},
		{"..", ".."},
		{"", "shop"},
		{"alice@example.com", ""},
		{"alice@example.com", "../../../outside"},
	}

	for _, c := range cases {
		path, err := store.Resolve(c.owner, c.db)
		if err == nil {
			// A cleaned-up path is acceptable only if it stays confined
			assert.True(t, strings.HasPrefix(path, store.root+string(filepath.Separator)),
				"owner=%q db=%q resolved outside root: %s", c.owner, c.db, path)
		} else {
			assert.ErrorIs(t, err, ErrPathEscape, "owner=%q db=%q", c.owner, c.db)
		}
	}
}

func TestStore_Execute_CreateInsertSelect(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	env := store.Execute(ctx, "alice@example.com", "shop", "CREATE TABLE t(x)")
	require.Equal(t, envelope.StatusOK, env.Status, "error: %s", env.ErrorMessage)
	assert.Nil(t, env.LastInsertedID)
	assert.Equal(t, "CREATE TABLE t(x)", env.Query)

	env = store.Execute(ctx, "alice@example.com", "shop", "INSERT INTO t VALUES (1)")
	require.Equal(t, envelope.StatusOK, env.Status)
	require.NotNil(t, env.LastInsertedID)
	assert.Equal(t, int64(1), *env.LastInsertedID)

	env = store.Execute(ctx, "alice@example.com", "shop", "SELECT * FROM t")
	require.Equal(t, envelope.StatusOK, env.Status)
	require.Len(t, env.Results, 1)
	assert.EqualValues(t, 1, env.Results[0]["x"])
	assert.Nil(t, env.LastInsertedID)
}

func TestStore_Execute_SyntaxError(t *testing.T) {
	store := setupTestStore(t)

	env := store.Execute(context.Background(), "alice@example.com", "shop", "SELEKT bad")
	assert.Equal(t, envelope.StatusError, env.Status)
	assert.NotEmpty(t, env.ErrorMessage)
	assert.Equal(t, "SELEKT bad", env.Query)
}

func TestStore_Execute_EmptyResultSet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.Equal(t, envelope.StatusOK, store.Execute(ctx, "alice@example.com", "shop", "CREATE TABLE t(x)").Status)

	env := store.Execute(ctx, "alice@example.com", "shop", "SELECT * FROM t")
	require.Equal(t, envelope.StatusOK, env.Status)
	assert.NotNil(t, env.Results, "read statements return an empty list, not null")
	assert.Len(t, env.Results, 0)
}

func TestStore_Execute_TenantIsolation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Same database name, different owners: fully separate files
	require.Equal(t, envelope.StatusOK, store.Execute(ctx, "alice@example.com", "shop", "CREATE TABLE t(x)").Status)
	require.Equal(t, envelope.StatusOK, store.Execute(ctx, "alice@example.com", "shop", "INSERT INTO t VALUES (1)").Status)

	env := store.Execute(ctx, "bob@example.com", "shop", "SELECT * FROM t")
	assert.Equal(t, envelope.StatusError, env.Status, "bob must not see alice's table")
}

func TestStore_Execute_PathEscapeRejected(t *testing.T) {
	store := setupTestStore(t)

	env := store.Execute(context.Background(), "../../outside", "../escape", "SELECT 1")
	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Contains(t, env.ErrorMessage, "escapes")
}

func TestStore_Execute_ConcurrentSameFile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.Equal(t, envelope.StatusOK, store.Execute(ctx, "alice@example.com", "shop", "CREATE TABLE t(x)").Status)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			env := store.Execute(ctx, "alice@example.com", "shop", "INSERT INTO t VALUES (1)")
			assert.Equal(t, envelope.StatusOK, env.Status, "error: %s", env.ErrorMessage)
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	env := store.Execute(ctx, "alice@example.com", "shop", "SELECT COUNT(*) AS n FROM t")
	require.Equal(t, envelope.StatusOK, env.Status)
	require.Len(t, env.Results, 1)
	assert.EqualValues(t, 8, env.Results[0]["n"])
}
