// Package auth provides JWT-based authentication and the authorization policy
// for ekaya-projects. Tokens are issued locally (HS256) at login and may also
// come from external issuers verified through JWKS endpoints.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
	// PrincipalKey is the context key for storing the resolved caller.
	PrincipalKey contextKey = "principal"
)

// Claims represents the JWT claims structure.
// Subject carries the user ID and ID (jti) identifies the token for revocation.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"` // Global role at issue time; the stored role wins.
}

// Principal is the authenticated caller resolved against the user store.
// Role is read from the user record, not the token, so role changes apply immediately.
type Principal struct {
	UserID uuid.UUID
	Role   models.GlobalRole
	Email  string
	Name   string
}

// IsAdmin reports whether the caller holds the global admin role.
func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// HasRole reports whether the caller's global role is one of roles.
func (p *Principal) HasRole(roles ...models.GlobalRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetPrincipal retrieves the authenticated caller from the request context.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*Principal)
	return p, ok && p != nil
}

// WithPrincipal stores the caller in ctx and mirrors it into the provenance
// context the audit log reads.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	return models.WithActor(ctx, p.UserID, p.Role)
}
