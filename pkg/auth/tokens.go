package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// Token errors.
var (
	ErrUnauthorizedIssuer = errors.New("unauthorized issuer")
	ErrMissingSubject     = errors.New("missing subject in token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// TokenValidator validates a JWT token string and returns its claims.
// This abstraction enables testing with mock implementations.
type TokenValidator interface {
	// ValidateToken returns an error if the token is invalid, expired, or has an unauthorized issuer.
	ValidateToken(tokenString string) (*Claims, error)
	// Close releases any resources held by the validator.
	Close()
}

// TokenIssuer issues tokens for authenticated users.
type TokenIssuer interface {
	// Issue signs a token for user. Returns the token, its jti and expiry.
	Issue(user *models.User) (token string, claims *Claims, err error)
}

// TokenConfig configures locally issued tokens.
type TokenConfig struct {
	// EnableVerification controls whether signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool
	Secret             string
	Issuer             string
	TTL                time.Duration
}

// TokenManager issues HS256 tokens and validates both local tokens and, when
// an external JWKS client is attached, tokens from whitelisted issuers.
type TokenManager struct {
	config *TokenConfig
	jwks   TokenValidator
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. jwks may be nil.
func NewTokenManager(cfg *TokenConfig, jwks TokenValidator) *TokenManager {
	return &TokenManager{config: cfg, jwks: jwks, now: time.Now}
}

// Issue signs a token for user.
func (m *TokenManager) Issue(user *models.User) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
		Email: user.Email,
		Role:  string(user.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken validates a JWT token and returns the claims.
// If verification is disabled, it parses the token without signature validation.
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	if !m.config.EnableVerification {
		return parseUnverifiedToken(tokenString)
	}

	unverified, err := parseUnverifiedToken(tokenString)
	if err != nil {
		return nil, err
	}

	if unverified.Issuer != m.config.Issuer {
		if m.jwks == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorizedIssuer, unverified.Issuer)
		}
		return m.jwks.ValidateToken(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

// Close releases the external JWKS client, if any.
func (m *TokenManager) Close() {
	if m.jwks != nil {
		m.jwks.Close()
	}
}

// parseUnverifiedToken parses a JWT without verifying the signature.
func parseUnverifiedToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return claims, nil
}

var (
	_ TokenValidator = (*TokenManager)(nil)
	_ TokenIssuer    = (*TokenManager)(nil)
)
