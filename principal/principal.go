// Package principal validates principal identifiers and generates the
// random suffixes used by archival history filenames. Principal
// identifiers ride on base58's alphabet via github.com/mr-tron/base58,
// the same library the rest of the retrieved pack reaches for
// (distribution/distribution, storj) when it needs base58 rather than
// hand-rolling it; the random suffixes use their own alphanumeric
// alphabet (randAlphabet).
package principal

import (
	"crypto/rand"
	"math/big"

	"github.com/mr-tron/base58"
)

// randAlphabet is the alphanumeric alphabet historical filenames draw
// their 10-character random suffix from (§6): digits and both cases,
// distinct from (but overlapping) the base58 alphabet used for
// principal identifiers.
const randAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Valid reports whether s is a syntactically valid principal: non-empty
// and drawn entirely from the base58 alphabet (no 0, O, I, l). Decoding
// is the simplest way to ask that question of base58.BTCAlphabet
// without duplicating its table.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	_, err := base58.Decode(s)
	return err == nil
}

// FromPublicKeyHex derives the base58 principal identifier from a
// compressed secp256k1 public key given as raw bytes: base58 of the
// compressed key bytes, with no checksum. Token verification hex-decodes
// the envelope's "iss" claim and passes the bytes here to get the
// principal string compared against the request path.
func FromPublicKeyHex(pubKeyBytes []byte) string {
	return base58.Encode(pubKeyBytes)
}

// RandSuffix returns a 10-character string drawn uniformly from
// randAlphabet, used as the "<rand10>" component of an archival
// historical filename (§6).
func RandSuffix() (string, error) {
	b := make([]byte, 10)
	max := big.NewInt(int64(len(randAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = randAlphabet[n.Int64()]
	}
	return string(b), nil
}
