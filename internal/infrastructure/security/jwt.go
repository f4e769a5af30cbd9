// Package security provides session token, identifier and password utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned for any token that fails signature, method or
// claim validation.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the claims carried by the session cookie.
type SessionClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueSessionToken creates an HS256 session token for an identity.
func IssueSessionToken(identityID, role, jwtSecret string, ttl time.Duration) (string, error) {
	if identityID == "" {
		return "", errors.New("identity ID is required")
	}
	if jwtSecret == "" {
		return "", errors.New("JWT secret is not configured")
	}

	now := time.Now().UTC()
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        GenerateULID(),
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateSessionToken validates a session token and returns its claims.
func ValidateSessionToken(tokenString, jwtSecret string) (*SessionClaims, error) {
	if tokenString == "" || jwtSecret == "" {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
