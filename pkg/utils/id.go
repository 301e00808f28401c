package utils

import (
	"crypto/rand"
	"math/big"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewPrefixedID returns prefix + n random alphanumeric characters, e.g.
// "CHT-7K2XQ9A4". Uniqueness is guaranteed by the store's unique index;
// callers regenerate on a duplicate-key error.
func NewPrefixedID(prefix string, n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			buf[i] = idAlphabet[0]
			continue
		}
		buf[i] = idAlphabet[idx.Int64()]
	}
	return prefix + string(buf)
}
