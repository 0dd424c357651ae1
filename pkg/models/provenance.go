package models

import (
	"context"

	"github.com/google/uuid"
)

// ProvenanceContext carries the caller's identity and request origin through
// an operation so the audit log can attribute it.
type ProvenanceContext struct {
	// UserID is the authenticated caller. Extracted from JWT claims.
	UserID uuid.UUID

	// Role is the caller's global role at the time of the request.
	Role GlobalRole

	// IPAddress is the caller's network address (IPv4 or IPv6 text form). Empty if unknown.
	IPAddress string

	// UserAgent is the caller's declared client string. Empty if unknown.
	UserAgent string
}

// provenanceKey is the context key for storing provenance information.
type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
// Returns the provenance context and true if present, otherwise a zero value and false.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}

// WithRequestOrigin returns a copy of ctx whose provenance carries the given
// address and user agent. The caller identity is preserved if already set.
func WithRequestOrigin(ctx context.Context, ipAddress, userAgent string) context.Context {
	p, _ := GetProvenance(ctx)
	p.IPAddress = ipAddress
	p.UserAgent = userAgent
	return WithProvenance(ctx, p)
}

// WithActor returns a copy of ctx whose provenance carries the given caller.
// Request origin fields are preserved if already set.
func WithActor(ctx context.Context, userID uuid.UUID, role GlobalRole) context.Context {
	p, _ := GetProvenance(ctx)
	p.UserID = userID
	p.Role = role
	return WithProvenance(ctx, p)
}
