package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSClient validates tokens from external identity providers using JWKS
// (JSON Web Key Set) endpoints. Only tokens from whitelisted issuers are accepted.
type JWKSClient struct {
	endpoints map[string]keyfunc.Keyfunc
}

// NewJWKSClient fetches JWKS from every configured issuer endpoint.
// Returns nil and no error when no endpoints are configured.
func NewJWKSClient(ctx context.Context, endpoints map[string]string) (*JWKSClient, error) {
	if len(endpoints) == 0 {
		return nil, nil
	}

	client := &JWKSClient{
		endpoints: make(map[string]keyfunc.Keyfunc, len(endpoints)),
	}

	for issuer, jwksURL := range endpoints {
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.endpoints[issuer] = jwks
	}

	return client, nil
}

// ValidateToken verifies the RSA signature using the issuer's JWKS public keys.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, errors.New("invalid claims type")
		}

		jwks, exists := c.endpoints[claims.Issuer]
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorizedIssuer, claims.Issuer)
		}

		return jwks.KeyfuncCtx(context.Background())(token)
	}, jwt.WithExpirationRequired())
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

// Close releases any resources held by the client.
// Currently a no-op as keyfunc v3 doesn't require explicit cleanup.
func (c *JWKSClient) Close() {}

var _ TokenValidator = (*JWKSClient)(nil)
