package database

import (
	"context"
	"errors"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// ErrNoScope is returned by repositories called without a scope in context.
var ErrNoScope = errors.New("no database scope in context")

// GetScope retrieves the request-scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	if !ok || scope == nil || scope.Conn == nil {
		return nil, false
	}
	return scope, true
}

// SetScope stores the request-scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}
