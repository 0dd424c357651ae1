// Package testhelpers provides utilities for testing ekaya-projects components.
package testhelpers

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestJWTSecret is the HS256 secret used by GenerateTestJWT.
const TestJWTSecret = "test-secret-test-secret-test-sec"

// TestJWTIssuer is the issuer claim used by GenerateTestJWT.
const TestJWTIssuer = "ekaya-projects"

// GenerateTestJWT creates a signed HS256 token for userID valid for one hour.
func GenerateTestJWT(userID uuid.UUID, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"iss":  TestJWTIssuer,
		"jti":  uuid.NewString(),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		panic(fmt.Sprintf("failed to sign test token: %v", err))
	}
	return signed
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(userID uuid.UUID, role string) string {
	return "Bearer " + GenerateTestJWT(userID, role)
}
