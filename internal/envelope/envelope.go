// ABOUTME: Uniform success/failure response envelope shared by catalog, tenant and gateway
// ABOUTME: Serializes to the JSON wire format returned by every query operation

package envelope

import "encoding/json"

// Status codes carried inside the envelope. They mirror the HTTP status the
// gateway responds with: everything is either ok or a flat 400 error, with
// error_message carrying the distinction.
const (
	StatusOK    = 200
	StatusError = 400
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Envelope is the wire format for every query response. Exactly one of
// Results/LastInsertedID is meaningful depending on the statement kind;
// ErrorMessage is set iff Status is StatusError.
type Envelope struct {
	Status         int    `json:"status"`
	Query          string `json:"query"`
	Results        []Row  `json:"results"`
	LastInsertedID *int64 `json:"last_inserted_id"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Good returns an ok envelope echoing the given query.
// Pass nil results and lastID for statements that produce neither.
func Good(query string, results []Row, lastID *int64) *Envelope {
	return &Envelope{
		Status:         StatusOK,
		Query:          query,
		Results:        results,
		LastInsertedID: lastID,
	}
}

// Bad returns an error envelope with the given message.
func Bad(query, errorMessage string) *Envelope {
	return &Envelope{
		Status:       StatusError,
		Query:        query,
		ErrorMessage: errorMessage,
	}
}

// OK reports whether the envelope carries a successful status.
func (e *Envelope) OK() bool {
	return e.Status == StatusOK
}

// JSON returns the serialized envelope.
func (e *Envelope) JSON() ([]byte, error) {
	return json.Marshal(e)
}
