package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the JWT and requires it to resolve to an active user.
// Sets claims, token and principal in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		principal, err := m.authService.ResolvePrincipal(r.Context(), claims)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthorized) {
				m.logger.Debug("Rejected token for unknown or inactive user",
					zap.String("subject", claims.Subject),
					zap.Error(err))
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			m.logger.Error("Failed to resolve caller", zap.Error(err))
			writeAuthError(w, http.StatusInternalServerError, "internal_error", "Failed to authenticate request")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, token)
		ctx = WithPrincipal(ctx, principal)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole restricts a handler to callers holding one of roles.
// Must run after RequireAuth.
func RequireRole(roles ...models.GlobalRole) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !p.HasRole(roles...) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

// RequireCapability restricts a handler to callers whose role alone grants op
// in the policy table. Operations with an ownership alternative are checked
// in the service layer instead, where the target's owner is known.
func RequireCapability(op Operation) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !RoleAllowed(op, p.Role) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

// writeAuthError writes the standard failure envelope.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
