package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// UserLookup loads the account a token refers to.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthService defines the interface for authentication operations.
// This abstraction enables clean separation between HTTP handling
// and authentication logic, making both easier to test.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request.
	// It checks for the token in:
	//   1. The signed session cookie (browser clients)
	//   2. Authorization header with "Bearer" scheme (API clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// ResolvePrincipal maps validated claims to an active user.
	// Returns apperrors.ErrUnauthorized if the user is unknown or inactive.
	ResolvePrincipal(ctx context.Context, claims *Claims) (*Principal, error)
}

type authService struct {
	validator TokenValidator
	sessions  *SessionStore
	revoked   RevocationStore
	users     UserLookup
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService. sessions may be nil to accept Bearer tokens only.
func NewAuthService(validator TokenValidator, sessions *SessionStore, revoked RevocationStore, users UserLookup, logger *zap.Logger) AuthService {
	if revoked == nil {
		revoked = noopRevocationStore{}
	}
	return &authService{
		validator: validator,
		sessions:  sessions,
		revoked:   revoked,
		users:     users,
		logger:    logger.Named("auth"),
	}
}

// ValidateRequest extracts and validates a JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	if token, ok := s.sessionToken(r); ok {
		tokenString = token
		tokenSource = "cookie"
	} else {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.logger.Debug("No JWT found in request",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			return nil, "", ErrMissingAuthorization
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	}

	claims, err := s.validator.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	revoked, err := s.revoked.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		// Revocation store outage should not lock every user out.
		s.logger.Warn("Token revocation check failed", zap.Error(err))
	} else if revoked {
		return nil, "", ErrTokenRevoked
	}

	return claims, tokenString, nil
}

func (s *authService) sessionToken(r *http.Request) (string, bool) {
	if s.sessions == nil {
		return "", false
	}
	return s.sessions.Token(r)
}

// ResolvePrincipal maps validated claims to an active user.
func (s *authService) ResolvePrincipal(ctx context.Context, claims *Claims) (*Principal, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", apperrors.ErrUnauthorized)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", apperrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, apperrors.ErrInactiveUser)
	}

	return &Principal{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

var _ AuthService = (*authService)(nil)
