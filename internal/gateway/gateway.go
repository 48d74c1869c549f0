// ABOUTME: Gateway wiring: collaborator interfaces and HTTP route registration
// ABOUTME: The single authenticated entry point in front of catalog and tenant stores

package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/2389/tokendb/internal/auth"
	"github.com/2389/tokendb/internal/catalog"
	"github.com/2389/tokendb/internal/envelope"
)

// CatalogStore is the slice of the catalog the gateway needs per request.
type CatalogStore interface {
	GetTokenByString(ctx context.Context, tokenString string) (*catalog.Token, error)
	GetUserByID(ctx context.Context, id int64) (*catalog.User, error)
	InsertUse(ctx context.Context, tokenString, data string) bool
}

// Executor runs one statement against a tenant database.
type Executor interface {
	Execute(ctx context.Context, owner, databaseName, sqlText string) *envelope.Envelope
}

// Verifier checks a token string's signature and yields its claims.
type Verifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// Gateway authenticates inbound tokens, routes statements to the right
// tenant database and audits every authenticated query.
type Gateway struct {
	catalog  CatalogStore
	tenants  Executor
	verifier Verifier
	logger   *slog.Logger
}

// New creates a gateway over the given collaborators.
func New(cat CatalogStore, tenants Executor, verifier Verifier) *Gateway {
	return &Gateway{
		catalog:  cat,
		tenants:  tenants,
		verifier: verifier,
		logger:   slog.Default().With("component", "gateway"),
	}
}

// Routes returns the gateway's HTTP mux.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query/", g.handleQuery)
	mux.HandleFunc("/healthz", g.handleHealth)
	return mux
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
