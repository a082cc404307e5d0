package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strconv"
)

// GenerateVerificationCode returns a zero-padded numeric code of n digits
// drawn from crypto/rand, uniform over [0, 10^n).
func GenerateVerificationCode(n int) (string, error) {
	if n <= 0 {
		n = 6
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// EnvOr reads an environment variable with a fallback default.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvOrInt reads an integer environment variable with a fallback default.
// Non-numeric values fall back to the default as well.
func EnvOrInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
