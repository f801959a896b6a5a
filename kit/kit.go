// Package kit holds the small transport-agnostic plumbing shared by the
// pagesync service surfaces: the Endpoint signature and its MCP adapter.
package kit

import "context"

// Endpoint is a transport-agnostic service function: typed request in,
// typed response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares outermost-first.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
