// Package auth verifies the session tokens issued by the external identity
// provider and exposes the verified user ID to handlers via the request
// context.
//
// The provider signs HS256 JWTs with a secret shared with this service; the
// "sub" claim carries the provider's user ID, which is also the primary key
// of the local users table. Verification needs no network call: signature,
// issuer and expiry checks are enough.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService validates (and, for tests and local development, mints)
// session tokens.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a TokenService for the given shared secret and
// expected issuer. Short secrets are rejected outright.
func NewTokenService(secret, issuer string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: token issuer is required")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Verify parses and checks a token string, returning the user ID from the
// "sub" claim. The algorithm is pinned to HS256 so a forged "none" or
// asymmetric header cannot slip through.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}

// Mint signs a token for the given user ID with the given lifetime. The
// provider does this in production; this method exists for tests and for
// running the stack locally without the provider.
func (s *TokenService) Mint(userID string, lifetime time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}
