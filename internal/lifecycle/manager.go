// ABOUTME: Token lifecycle manager covering creation and activation
// ABOUTME: Pending tokens carry a short-lived code; verification flips them active once

package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/2389/tokendb/internal/auth"
	"github.com/2389/tokendb/internal/catalog"
	"github.com/2389/tokendb/internal/notify"
)

// Lifecycle errors
var (
	// ErrTokenCreationFailed means the pending row was inserted but the
	// signed string and activation code could not be attached. The orphan
	// row is a defined failure mode, not silently retried.
	ErrTokenCreationFailed = errors.New("token creation failed")

	// ErrInvalidActivationCode covers mismatched, missing and expired codes
	ErrInvalidActivationCode = errors.New("invalid activation code")

	// ErrInvalidDatabaseName is returned for names that could not map to a
	// tenant file
	ErrInvalidDatabaseName = errors.New("invalid database name")
)

// DefaultCodeTTL is how long an activation code stays valid.
const DefaultCodeTTL = 30 * time.Minute

// databaseNamePattern restricts logical database names to characters that
// map cleanly onto a file name. Anything else is rejected before a row is
// ever inserted.
var databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// TokenStore is the slice of the catalog the manager needs.
type TokenStore interface {
	InsertToken(ctx context.Context, userID int64, databaseName string) (*catalog.Token, error)
	UpdateToken(ctx context.Context, id int64, update catalog.TokenUpdate) error
	GetTokenByID(ctx context.Context, id int64) (*catalog.Token, error)
}

// Manager drives the pending -> active token state machine.
type Manager struct {
	tokens   TokenStore
	signer   *auth.Signer
	notifier notify.Notifier
	codeTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager creates a lifecycle manager. A zero codeTTL falls back to
// DefaultCodeTTL.
func NewManager(tokens TokenStore, signer *auth.Signer, notifier notify.Notifier, codeTTL time.Duration) *Manager {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &Manager{
		tokens:   tokens,
		signer:   signer,
		notifier: notifier,
		codeTTL:  codeTTL,
		now:      time.Now,
		logger:   slog.Default().With("component", "lifecycle"),
	}
}

// CreateToken creates a pending token for the owner and logical database
// name: insert the row, sign the token string bound to it, attach a fresh
// activation code, persist both, then deliver the code best-effort.
// The insert and the follow-up update are one logical creation step; if the
// update fails the row is left behind and ErrTokenCreationFailed is
// returned.
func (m *Manager) CreateToken(ctx context.Context, user *catalog.User, databaseName string) (*catalog.Token, error) {
	if !databaseNamePattern.MatchString(databaseName) {
		return nil, ErrInvalidDatabaseName
	}

	token, err := m.tokens.InsertToken(ctx, user.ID, databaseName)
	if err != nil {
		return nil, err
	}

	tokenString, err := m.signer.Sign(auth.Claims{
		TokenID:       token.ID,
		UserID:        user.ID,
		UserEmail:     user.Email,
		DatabaseName:  token.DatabaseName,
		TokenCreation: token.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: signing: %v", ErrTokenCreationFailed, err)
	}

	code, err := generateActivationCode()
	if err != nil {
		return nil, fmt.Errorf("%w: generating code: %v", ErrTokenCreationFailed, err)
	}
	expiry := m.now().Add(m.codeTTL).UTC()

	err = m.tokens.UpdateToken(ctx, token.ID, catalog.TokenUpdate{
		TokenString:          &tokenString,
		ActivationCode:       &code,
		ActivationCodeExpiry: &expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenCreationFailed, err)
	}

	token.TokenString = tokenString
	token.ActivationCode = code
	token.ActivationCodeExpiry = &expiry

	if err := m.notifier.Send(ctx, user.Email, code); err != nil {
		// Delivery is best-effort; the token stays created
		m.logger.Warn("activation code delivery failed", "token_id", token.ID, "error", err)
	}

	m.logger.Info("created pending token", "token_id", token.ID, "user_id", user.ID, "database", databaseName)
	return token, nil
}

// Activate verifies the code and transitions the token from pending to
// active, clearing the code and its expiry. Codes compare
// case-insensitively and must not be past their expiry. Activating an
// already-active token is a no-op success, since clients may retry the
// activation step.
func (m *Manager) Activate(ctx context.Context, tokenID int64, code string) error {
	token, err := m.tokens.GetTokenByID(ctx, tokenID)
	if err != nil {
		return err
	}

	if token.Active {
		return nil
	}

	if token.ActivationCode == "" {
		return ErrInvalidActivationCode
	}
	if !strings.EqualFold(token.ActivationCode, code) {
		return ErrInvalidActivationCode
	}
	if token.ActivationCodeExpiry != nil && m.now().After(*token.ActivationCodeExpiry) {
		return ErrInvalidActivationCode
	}

	active := true
	err = m.tokens.UpdateToken(ctx, token.ID, catalog.TokenUpdate{
		Active:          &active,
		ClearActivation: true,
	})
	if err != nil {
		return err
	}

	m.logger.Info("activated token", "token_id", token.ID)
	return nil
}

// generateActivationCode returns a short uppercase hex code.
func generateActivationCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
