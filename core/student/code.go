package student

import (
	"crypto/rand"
	"math/big"
)

// AccessCodeAlphabet leaves out characters that are easily confused when read aloud or handwritten (0/O, 1/I).
const AccessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultAccessCodeLength = 8

// GenerateAccessCode returns a random n-character code drawn from AccessCodeAlphabet.
// Codes are not unique by construction: the store's unique constraint catches collisions.
func GenerateAccessCode(n int) (string, error) {
	if n <= 0 {
		n = DefaultAccessCodeLength
	}
	max := big.NewInt(int64(len(AccessCodeAlphabet)))
	code := make([]byte, n)
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = AccessCodeAlphabet[idx.Int64()]
	}
	return string(code), nil
}
