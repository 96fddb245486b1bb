// Package identity produces the two human-visible identifiers of the system:
// per-user access codes and per-ticket numbers. Neither generator guarantees
// uniqueness on its own; the store's unique constraints plus caller-side
// retry do.
package identity

import (
	"crypto/rand"
	"math/big"
)

// AccessCodeLength is the fixed length of generated access codes.
const AccessCodeLength = 12

const accessCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateAccessCode returns a 12-character code drawn uniformly from
// [A-Z0-9] using a cryptographically secure source. Codes are secrets, so a
// general-purpose PRNG is not acceptable here.
func GenerateAccessCode() (string, error) {
	max := big.NewInt(int64(len(accessCodeCharset)))
	code := make([]byte, AccessCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = accessCodeCharset[n.Int64()]
	}
	return string(code), nil
}
