package net

import (
	"context"
)

// Transport is the minimal interface the rest of peerfetch needs to query a
// peer. Client is the production implementation; tests substitute their own.
type Transport interface {

	// Get issues a GET request against rawURL, with params encoded as the
	// query string, and decodes the JSON answer into out. It returns the HTTP
	// status when a response was received, and 0 otherwise.
	Get(ctx context.Context, rawURL string, params interface{}, out interface{}) (int, error)
}
