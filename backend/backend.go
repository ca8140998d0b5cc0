// Package backend defines the uniform contract every model-vendor
// connector satisfies (§4.1), and the cross-cutting helpers leaf
// backends may use but must not turn into policy of their own (no
// caching, no circuit breaking, no global metrics — those live one
// layer up, in orchestrator).
package backend

import (
	"context"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// Backend is satisfied by every model-vendor connector: three HTTP
// (or subprocess) wire shapes, all exposing the same three operations.
type Backend interface {
	// HealthCheck fails closed: any connectivity or authentication
	// error is reported as unhealthy, never returned as an error.
	HealthCheck(ctx context.Context) bool

	// ListModels returns the catalog this backend currently serves.
	// May be empty, and an empty catalog may be returned as nil.
	ListModels(ctx context.Context) ([]types.ModelInfo, error)

	// Query dispatches one request and returns a normalized response.
	// Implementations measure LatencyMS as wall time from send to
	// received body and may internally retry idempotent transport
	// errors, but apply no other cross-cutting policy.
	Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error)
}
