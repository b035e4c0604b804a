package hubtoken

import (
	"crypto/sha256"
	"encoding/asn1"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/golang-jwt/jwt/v4"
)

// AlgES256K is the JWT "alg" value for ECDSA over secp256k1 used
// throughout the Stacks/Blockstack ecosystem. golang-jwt/v4 ships only
// the NIST-curve ES256/384/512 methods, so ES256K is registered here as
// a custom jwt.SigningMethod — the library's own supported extension
// point (jwt.RegisterSigningMethod) — backed by
// github.com/decred/dcrd/dcrec/secp256k1/v4 for the curve math.
const AlgES256K = "ES256K"

func init() {
	jwt.RegisterSigningMethod(AlgES256K, func() jwt.SigningMethod {
		return signingMethodES256K{}
	})
}

type signingMethodES256K struct{}

func (signingMethodES256K) Alg() string { return AlgES256K }

// Sign produces a 64-byte raw R||S signature (each 32 bytes, big-endian,
// left-padded with zeroes), the JOSE convention for EC signatures —
// distinct from DER encoding.
func (signingMethodES256K) Sign(signingString string, key interface{}) (string, error) {
	priv, ok := key.(*secp256k1.PrivateKey)
	if !ok {
		return "", jwt.ErrInvalidKeyType
	}
	digest := sha256.Sum256([]byte(signingString))
	sig := ecdsa.Sign(priv, digest[:])

	var asn1Sig struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(sig.Serialize(), &asn1Sig); err != nil {
		return "", err
	}
	rBytes := asn1Sig.R.Bytes()
	sBytes := asn1Sig.S.Bytes()
	out := make([]byte, 64)
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	return jwt.EncodeSegment(out), nil
}

// Verify checks a raw R||S signature against a compressed or
// uncompressed secp256k1 public key.
func (signingMethodES256K) Verify(signingString, signature string, key interface{}) error {
	pub, ok := key.(*secp256k1.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	sigBytes, err := jwt.DecodeSegment(signature)
	if err != nil {
		return err
	}
	if len(sigBytes) != 64 {
		return errors.New("hubtoken: ES256K signature must be 64 bytes")
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sigBytes[:32]) || s.SetByteSlice(sigBytes[32:]) {
		return errors.New("hubtoken: ES256K signature component out of range")
	}
	sig := ecdsa.NewSignature(&r, &s)
	digest := sha256.Sum256([]byte(signingString))
	if !sig.Verify(digest[:], pub) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
