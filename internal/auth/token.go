// ABOUTME: Signing and verification of catalog-bound token strings
// ABOUTME: Uses HS256 JWTs carrying the token row identity as claims

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims binds a token string cryptographically to its catalog row.
// The signature covers the row id, the owner and the database the token
// scopes, so a string cannot be replayed against another row.
type Claims struct {
	TokenID       int64
	UserID        int64
	UserEmail     string
	DatabaseName  string
	TokenCreation time.Time
}

// Signer signs and verifies token strings with a shared HS256 secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer with the given secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign produces the token string for the given claims. It is called once,
// at token creation; a token string is never regenerated.
func (s *Signer) Sign(c Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_id":       c.TokenID,
		"user_id":        c.UserID,
		"user_email":     c.UserEmail,
		"database_name":  c.DatabaseName,
		"token_creation": c.TokenCreation.UTC().Format(time.RFC3339),
	})
	return token.SignedString(s.secret)
}

// Verify validates the signature and extracts the claims.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	c := &Claims{}

	tokenID, ok := mapClaims["token_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: token_id", ErrMissingClaim)
	}
	c.TokenID = int64(tokenID)

	userID, ok := mapClaims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: user_id", ErrMissingClaim)
	}
	c.UserID = int64(userID)

	c.UserEmail, ok = mapClaims["user_email"].(string)
	if !ok || c.UserEmail == "" {
		return nil, fmt.Errorf("%w: user_email", ErrMissingClaim)
	}

	c.DatabaseName, ok = mapClaims["database_name"].(string)
	if !ok || c.DatabaseName == "" {
		return nil, fmt.Errorf("%w: database_name", ErrMissingClaim)
	}

	creation, ok := mapClaims["token_creation"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: token_creation", ErrMissingClaim)
	}
	c.TokenCreation, err = time.Parse(time.RFC3339, creation)
	if err != nil {
		return nil, fmt.Errorf("%w: token_creation: %v", ErrInvalidToken, err)
	}

	return c, nil
}
