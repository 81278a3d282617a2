// Package auth resolves the credentials presented during the websocket
// handshake into a user identity.
package auth

import (
	"fmt"
	"time"

	"duplex/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user. Used by the
// token CLI and by tests; the engine itself only validates.
func GenerateToken(secret []byte, userID string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "duplex",
		},
	}

	// HS256 (HMAC with SHA256).
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// TokenAuthenticator validates HS256 tokens against a shared secret and
// implements contract.Authenticator.
type TokenAuthenticator struct {
	secret []byte
}

func NewTokenAuthenticator(secret []byte) *TokenAuthenticator {
	return &TokenAuthenticator{secret: secret}
}

// IdentityForConnection parses and validates the signature and expiration
// of the presented token and returns the user id it carries.
func (a *TokenAuthenticator) IdentityForConnection(credentials string) (string, error) {
	if credentials == "" {
		return "", errors.ErrAuthFailure
	}

	token, err := jwt.ParseWithClaims(credentials, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrAuthFailure, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", errors.ErrAuthFailure
	}
	return claims.UserID, nil
}
