package lifecycle

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tokendb/internal/auth"
	"github.com/2389/tokendb/internal/catalog"
)

// recordingNotifier captures delivered codes for assertions.
type recordingNotifier struct {
	recipient string
	code      string
	err       error
}

func (n *recordingNotifier) Send(ctx context.Context, recipientEmail, activationCode string) error {
	n.recipient = recipientEmail
	n.code = activationCode
	return n.err
}

func setupTestManager(t *testing.T) (*Manager, *catalog.Store, *recordingNotifier) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	notifier := &recordingNotifier{}
	manager := NewManager(store, auth.NewSigner([]byte("test-secret")), notifier, 0)
	return manager, store, notifier
}

func createTestUser(t *testing.T, store *catalog.Store) *catalog.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), "Alice Example", "alice@example.com", "hash")
	require.NoError(t, err)
	return user
}

var codePattern = regexp.MustCompile(`^[0-9A-F]{6}$`)

func TestManager_CreateToken(t *testing.T) {
	manager, store, notifier := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	token, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	assert.False(t, token.Active, "new tokens start pending")
	assert.NotEmpty(t, token.TokenString)
	assert.Regexp(t, codePattern, token.ActivationCode)
	require.NotNil(t, token.ActivationCodeExpiry)
	assert.WithinDuration(t, time.Now().Add(DefaultCodeTTL), *token.ActivationCodeExpiry, time.Minute)

	// Code was handed to the notifier for the owner's address
	assert.Equal(t, "alice@example.com", notifier.recipient)
	assert.Equal(t, token.ActivationCode, notifier.code)

	// The signed string is bound to the catalog row
	verified, err := auth.NewSigner([]byte("test-secret")).Verify(token.TokenString)
	require.NoError(t, err)
	assert.Equal(t, token.ID, verified.TokenID)
	assert.Equal(t, user.ID, verified.UserID)
	assert.Equal(t, "shop", verified.DatabaseName)

	// And persisted: lookup by string resolves the same row
	stored, err := store.GetTokenByString(ctx, token.TokenString)
	require.NoError(t, err)
	assert.Equal(t, token.ID, stored.ID)
}

func TestManager_CreateToken_DuplicateDatabaseName(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	_, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	_, err = manager.CreateToken(ctx, user, "shop")
	assert.ErrorIs(t, err, catalog.ErrDuplicateDatabaseName)
}

func TestManager_CreateToken_InvalidDatabaseName(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	user := createTestUser(t, store)

	for _, name := range []string{"", "../escape", "a/b", "name with spaces", "dots.db"} {
		_, err := manager.CreateToken(context.Background(), user, name)
		assert.ErrorIs(t, err, ErrInvalidDatabaseName, "name %q", name)
	}
}

func TestManager_CreateToken_NotifierFailureDoesNotRollBack(t *testing.T) {
	manager, store, notifier := setupTestManager(t)
	notifier.err = assert.AnError
	user := createTestUser(t, store)

	token, err := manager.CreateToken(context.Background(), user, "shop")
	require.NoError(t, err, "delivery failure must not abort creation")
	assert.NotEmpty(t, token.TokenString)
}

func TestManager_Activate(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	token, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	err = manager.Activate(ctx, token.ID, token.ActivationCode)
	require.NoError(t, err)

	stored, err := store.GetTokenByID(ctx, token.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Empty(t, stored.ActivationCode, "code cleared on activation")
	assert.Nil(t, stored.ActivationCodeExpiry, "expiry cleared on activation")
}

func TestManager_Activate_CaseInsensitive(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	token, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	// Codes are stored uppercase; lowercase input still verifies
	err = manager.Activate(ctx, token.ID, strings.ToLower(token.ActivationCode))
	assert.NoError(t, err)
}

func TestManager_Activate_Idempotent(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	token, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	require.NoError(t, manager.Activate(ctx, token.ID, token.ActivationCode))

	// Retrying the activation page is a no-op success, even with a wrong code
	assert.NoError(t, manager.Activate(ctx, token.ID, token.ActivationCode))
	assert.NoError(t, manager.Activate(ctx, token.ID, "WRONG1"))
}

func TestManager_Activate_WrongCode(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	token, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	err = manager.Activate(ctx, token.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidActivationCode)

	// A failed attempt never mutates token state
	stored, err := store.GetTokenByID(ctx, token.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, token.ActivationCode, stored.ActivationCode)
}

func TestManager_Activate_ExpiredCode(t *testing.T) {
	manager, store, _ := setupTestManager(t)
	ctx := context.Background()
	user := createTestUser(t, store)

	token, err := manager.CreateToken(ctx, user, "shop")
	require.NoError(t, err)

	// Move the manager's clock past the code expiry
	manager.now = func() time.Time { return time.Now().Add(DefaultCodeTTL + time.Minute) }

	err = manager.Activate(ctx, token.ID, token.ActivationCode)
	assert.ErrorIs(t, err, ErrInvalidActivationCode)

	stored, err := store.GetTokenByID(ctx, token.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestManager_Activate_UnknownToken(t *testing.T) {
	manager, _, _ := setupTestManager(t)
	err := manager.Activate(context.Background(), 12345, "A1B2C3")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
