package stringutil

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SecureRandomString generates a random string of len n using crypto/rand.
func SecureRandomString(n int) string {
	buf := make([]byte, n)

	for i := range buf {
		outcome, errInt := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if errInt != nil {
			panic(errInt)
		}

		buf[i] = alphabet[outcome.Int64()]
	}

	return string(buf)
}
