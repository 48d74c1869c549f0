// Package gateway serves the token-scoped query API.
//
// # Overview
//
// The gateway is the only network surface in front of the catalog and
// the tenant stores. Every request to GET /api/v1/query/ walks the same
// protocol: resolve the token, verify its signature against the shared
// secret, confirm the catalog row is active, execute the statement
// against the owner's database file, and append an audit record.
//
// Responses always carry the uniform envelope, including the terminal
// catch-all: a request that fails in an unforeseen way still gets a
// well-formed error envelope rather than a bare 500.
//
// Collaborators are consumed through small interfaces (CatalogStore,
// Executor, Verifier) so tests can swap any of them independently.
package gateway
