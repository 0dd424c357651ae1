package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetUserUUIDFromContext returns the caller's ID, preferring the resolved
// principal over the raw token subject.
func GetUserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if p, ok := GetPrincipal(ctx); ok {
		return p.UserID, true
	}

	userID, err := uuid.Parse(GetUserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// RequirePrincipal returns the authenticated caller or apperrors.ErrUnauthorized.
// Use this in handlers that sit behind RequireAuth.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no authenticated caller in context", apperrors.ErrUnauthorized)
	}
	return p, nil
}
