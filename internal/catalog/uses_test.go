package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertUse(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice@example.com")

	token, err := store.InsertToken(ctx, user.ID, "shop")
	require.NoError(t, err)

	tokenString := "signed-token"
	require.NoError(t, store.UpdateToken(ctx, token.ID, TokenUpdate{TokenString: &tokenString}))

	ok := store.InsertUse(ctx, tokenString, `{"status":200}`)
	assert.True(t, ok)

	uses, err := store.ListUses(ctx, UseFilter{TokenID: &token.ID})
	require.NoError(t, err)
	require.Len(t, uses, 1)
	assert.Equal(t, token.ID, uses[0].TokenID)
	assert.Equal(t, `{"status":200}`, uses[0].Data)
	assert.False(t, uses[0].CreatedAt.IsZero())
}

func TestStore_InsertUse_UnknownToken(t *testing.T) {
	store := setupTestStore(t)

	// Resolving an unknown token string inserts nothing and reports
	// failure instead of raising
	ok := store.InsertUse(context.Background(), "unknown-token", "{}")
	assert.False(t, ok)
}

func TestStore_ListUses_OrderAndLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice@example.com")

	token, err := store.InsertToken(ctx, user.ID, "shop")
	require.NoError(t, err)
	tokenString := "signed-token"
	require.NoError(t, store.UpdateToken(ctx, token.ID, TokenUpdate{TokenString: &tokenString}))

	for i := 0; i < 5; i++ {
		require.True(t, store.InsertUse(ctx, tokenString, "{}"))
	}

	uses, err := store.ListUses(ctx, UseFilter{TokenID: &token.ID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, uses, 3)
	// Oldest first, append-only ordering
	assert.Less(t, uses[0].ID, uses[1].ID)
	assert.Less(t, uses[1].ID, uses[2].ID)
}
