package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTP creates a 6-digit zero-padded numeric code using crypto/rand
func GenerateOTP() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
