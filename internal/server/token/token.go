// Package token mints and verifies the signed session tokens used by the
// datagram transport, where no long-lived connection exists to bind a
// session to.
package token

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the session id alongside the registered claim set.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string
}

// Generate signs an HS256 token binding the session id for the given
// validity window.
func Generate(sessionID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		SessionID: sessionID,
	})

	return token.SignedString(secretKey)
}

// SessionIDFromToken verifies the token and extracts the session id claim.
func SessionIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.SessionID, nil
}
