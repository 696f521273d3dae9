package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewNumericCode returns a uniformly random decimal code of exactly digits
// characters, zero-padded (e.g. "004913").
func NewNumericCode(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", fmt.Errorf("generate numeric code: invalid length %d", digits)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
