package main

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims for the operator token guarding the admin endpoints. These are
// short-lived tokens minted out of band for ops tooling, not user sessions.
type AdminTokenClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// MintAdminToken generates a one-hour operator token.
func MintAdminToken(operator string) (string, error) {
	secret := os.Getenv("ADMIN_TOKEN_SECRET")
	claims := AdminTokenClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyAdminToken checks an operator token and returns the operator name.
func VerifyAdminToken(tokenString string) (string, error) {
	secret := os.Getenv("ADMIN_TOKEN_SECRET")
	token, err := jwt.ParseWithClaims(
		tokenString,
		&AdminTokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
	)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*AdminTokenClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid admin token")
	}
	return claims.Operator, nil
}
