// Package auth issues and verifies the bearer tokens that gate the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// DefaultTokenExpiry is the bearer lifetime when the caller does not override it.
const DefaultTokenExpiry = 30 * time.Minute

// Service mints and validates HS256 bearer tokens. The signing key is
// process-wide configuration loaded at init; rotation requires a restart.
type Service struct {
	secret      []byte
	tokenExpiry time.Duration
}

// Claims is the token payload: subject carries the username.
type Claims struct {
	jwt.RegisteredClaims
}

// NewService creates a token service with the default 30 minute expiry.
func NewService(secret string) *Service {
	return &Service{
		secret:      []byte(secret),
		tokenExpiry: DefaultTokenExpiry,
	}
}

// CreateAccessToken mints a signed token for username. A zero expiresIn uses
// the service default.
func (s *Service) CreateAccessToken(username string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = s.tokenExpiry
	}
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a bearer token and returns the subject username.
// Malformed tokens, expired tokens, and tokens without a subject all fail.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
