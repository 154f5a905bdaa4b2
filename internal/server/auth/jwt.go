// Package auth mints and validates the bounded-lifetime session tokens issued
// after a successful wallet challenge redemption.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fraudwatch/fraudwatch/internal/common"
)

// Claims carries the standard registered claims plus the authenticated
// wallet address.
type Claims struct {
	jwt.RegisteredClaims
	Address string
}

// GenerateToken mints an HS256 session token for the given wallet address.
func GenerateToken(address string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Address: address,
	})

	return token.SignedString(secretKey)
}

// GetAddressFromToken validates tokenString and returns the wallet address it
// was issued for. Expired or malformed tokens yield ErrInvalidToken.
func GetAddressFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Address == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Address, nil
}
