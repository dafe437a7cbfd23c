package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// HostTokenDuration bounds how long a pairing link stays usable.
const HostTokenDuration = 30 * 24 * time.Hour

const hostTokenType = "host"

// Claims identify one paired browser shim.
type Claims struct {
	ShimID    string `json:"shimId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

func GenerateHostToken(secret string, shimID string) (string, error) {
	return generateToken(secret, shimID, hostTokenType, HostTokenDuration)
}

// NewShimID returns a fresh identifier for a pairing.
func NewShimID() string {
	return uuid.NewString()
}

func ValidateHostToken(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != hostTokenType {
		return nil, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}
	return claims, nil
}

func generateToken(secret string, shimID string, tokenType string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ShimID:    shimID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
