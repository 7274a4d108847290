// Package http provides the HTTP surface of credentials: the access
// middleware, logout, magic link redemption and entitlement introspection.
package http

import (
	"context"

	"github.com/allisson/tierguard/internal/access"
)

// decisionKey is a context key type for storing access decisions.
type decisionKey struct{}

// WithDecision stores the access decision of the current request in the context.
func WithDecision(ctx context.Context, decision *access.Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, decision)
}

// GetDecision retrieves the access decision from the context.
// Returns (nil, false) when the access middleware did not run.
func GetDecision(ctx context.Context) (*access.Decision, bool) {
	decision, ok := ctx.Value(decisionKey{}).(*access.Decision)
	return decision, ok
}
