package hubtoken

import (
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/golang-jwt/jwt/v4"
	"github.com/zaharov-labs/stackhub/apierr"
)

// envelope is a decoded three-segment dotted token: base64url header,
// base64url payload, base64url signature.
type envelope struct {
	headerSeg  string
	payloadSeg string
	sigSeg     string
	header     Header
	payload    Payload
}

func decodeEnvelope(tok string) (*envelope, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, apierr.NewValidationError(apierr.BadTokenFormat, "token must have three dot-separated segments")
	}
	headerBytes, err := jwt.DecodeSegment(parts[0])
	if err != nil {
		return nil, apierr.NewValidationError(apierr.BadTokenFormat, "malformed header segment")
	}
	payloadBytes, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return nil, apierr.NewValidationError(apierr.BadTokenFormat, "malformed payload segment")
	}
	var h Header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, apierr.NewValidationError(apierr.BadTokenFormat, "malformed header JSON")
	}
	var p Payload
	if err := json.Unmarshal(payloadBytes, &p); err != nil {
		return nil, apierr.NewValidationError(apierr.BadTokenFormat, "malformed payload JSON")
	}
	return &envelope{
		headerSeg:  parts[0],
		payloadSeg: parts[1],
		sigSeg:     parts[2],
		header:     h,
		payload:    p,
	}, nil
}

// verifySignature checks env's signature against the secp256k1 public
// key encoded in pubKeyHex, using the signing method env's header
// declares (normally ES256K).
func verifySignature(env *envelope, pubKeyHex string) error {
	method := jwt.GetSigningMethod(env.header.Alg)
	if method == nil {
		return apierr.NewValidationError(apierr.BadTokenFormat, "unsupported token algorithm")
	}
	keyBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return apierr.NewValidationError(apierr.SignatureInvalid, "malformed issuer public key")
	}
	pub, err := secp256k1.ParsePubKey(keyBytes)
	if err != nil {
		return apierr.NewValidationError(apierr.SignatureInvalid, "malformed issuer public key")
	}
	signingString := env.headerSeg + "." + env.payloadSeg
	if err := method.Verify(signingString, env.sigSeg, pub); err != nil {
		return apierr.NewValidationError(apierr.SignatureInvalid, "signature verification failed")
	}
	return nil
}
