// ABOUTME: HTTP handler for GET /api/v1/query/ implementing the query protocol
// ABOUTME: Token auth, statement routing, envelope response and best-effort audit

package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/2389/tokendb/internal/envelope"
)

// Error messages carried in the envelope. The wire taxonomy is flattened
// to a single 400 status; error_message carries the distinction.
const (
	msgMissingToken   = "Missing token"
	msgInvalidToken   = "Invalid token"
	msgTokenNotActive = "Token not active"
	msgMissingQuery   = "Missing query"
	msgUnknownError   = "Unknown error"
)

// handleQuery is the sole API surface of the gateway. Every branch
// produces a well-formed envelope; nothing is silently dropped.
func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	echo := unescapedURI(r)

	if r.Method != http.MethodGet {
		g.respond(w, envelope.Bad(echo, msgUnknownError))
		return
	}

	env, tokenString := g.resolveAndExecute(r, echo, requestID)
	if env == nil {
		// Terminal catch-all: a faithful request still gets an envelope
		env = envelope.Bad(echo, msgUnknownError)
	}

	// Audit every call that carried a resolvable token and reached
	// execution. A failed audit write is logged and never surfaces.
	if tokenString != "" {
		if data, err := env.JSON(); err == nil {
			if !g.catalog.InsertUse(r.Context(), tokenString, string(data)) {
				g.logger.Warn("audit record not written", "request_id", requestID)
			}
		} else {
			g.logger.Warn("serializing envelope for audit failed", "request_id", requestID, "error", err)
		}
	}

	g.respond(w, env)
}

// resolveAndExecute walks the query protocol. It returns the response
// envelope plus the token string once the request is far enough along to
// be audited (empty string means the request failed before execution).
func (g *Gateway) resolveAndExecute(r *http.Request, echo, requestID string) (*envelope.Envelope, string) {
	params := r.URL.Query()

	tokenString := params.Get("token")
	if tokenString == "" {
		return envelope.Bad(echo, msgMissingToken), ""
	}

	claims, err := g.verifier.Verify(tokenString)
	if err != nil {
		g.logger.Debug("token signature rejected", "request_id", requestID, "error", err)
		return envelope.Bad(echo, msgInvalidToken), ""
	}

	token, err := g.catalog.GetTokenByString(r.Context(), tokenString)
	if err != nil {
		g.logger.Debug("token not in catalog", "request_id", requestID, "token_id", claims.TokenID)
		return envelope.Bad(echo, msgInvalidToken), ""
	}

	if !token.Active {
		return envelope.Bad(echo, msgTokenNotActive), ""
	}

	sqlText := params.Get("q")
	if sqlText == "" {
		return envelope.Bad(echo, msgMissingQuery), ""
	}

	owner, err := g.catalog.GetUserByID(r.Context(), token.UserID)
	if err != nil {
		g.logger.Error("token owner missing from catalog", "request_id", requestID, "user_id", token.UserID)
		return nil, ""
	}

	env := g.tenants.Execute(r.Context(), owner.Email, token.DatabaseName, sqlText)
	// The envelope echoes the original request, not just the statement
	env.Query = echo

	g.logger.Info("executed query",
		"request_id", requestID,
		"token_id", token.ID,
		"database", token.DatabaseName,
		"status", env.Status,
	)
	return env, tokenString
}

// respond writes the envelope with the HTTP status mirroring its status.
func (g *Gateway) respond(w http.ResponseWriter, env *envelope.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		g.logger.Warn("writing response failed", "error", err)
	}
}

// unescapedURI returns the original request URI with URL escaping undone,
// falling back to the raw URI when it does not unescape cleanly.
func unescapedURI(r *http.Request) string {
	raw := r.URL.RequestURI()
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return unescaped
}
