package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope wraps the connection a single request runs its queries on.
// Every statement in one request goes through the same connection, in order.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection to the pool. Safe to call on a nil scope.
func (s *Scope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// Acquire takes a connection from the pool for one unit of work.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn}, nil
}

// WithScope returns a context carrying a freshly acquired scope, and a
// cleanup function that releases it. Used outside of HTTP requests
// (startup seeding, integration tests).
func (db *DB) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
