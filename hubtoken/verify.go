// Package hubtoken decodes and verifies the bearer-token envelope
// described in spec §3/§4.2/§6: a three-segment dotted token
// (base64url header.payload.signature), ECDSA over secp256k1
// ("ES256K"), with an optional association-token chain and a six-kind
// scopes list.
package hubtoken

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/principal"
)

// maxAssociationChainDepth bounds chain walking so a maliciously
// circular/absurdly long associationToken chain cannot make
// verification run unboundedly.
const maxAssociationChainDepth = 16

// RevocationClock is the subset of revocation.Clock the verifier needs.
// Declared here (rather than imported from package revocation) to keep
// hubtoken free of a dependency on the driver/storage stack.
type RevocationClock interface {
	Get(ctx context.Context, principal string) (int64, error)
}

// Config holds the verifier's static, per-hub settings (§4.2).
type Config struct {
	ServerName           string
	ValidHubURLs         []string
	RequireCorrectHubURL bool
	// Whitelist, if non-nil, restricts writers to the listed principals
	// (§3 invariant, §4.2 step 8). A nil map means no whitelist.
	Whitelist map[string]struct{}
}

// Verifier verifies bearer tokens against a fixed hub configuration and
// a revocation clock.
type Verifier struct {
	cfg   Config
	clock RevocationClock
}

func NewVerifier(cfg Config, clock RevocationClock) *Verifier {
	return &Verifier{cfg: cfg, clock: clock}
}

// VerifiedToken is the result of a successful Verify call.
type VerifiedToken struct {
	Principal string
	Scopes    ScopeSet
	Payload   Payload
}

// Verify implements the eight-step order of §4.2. authHeader is the raw
// value of the Authorization header; requestedPrincipal is the
// principal named in the request path.
func (v *Verifier) Verify(ctx context.Context, authHeader, requestedPrincipal string) (*VerifiedToken, error) {
	tok, err := extractBearer(authHeader)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(tok)
	if err != nil {
		return nil, err
	}

	if env.payload.Iss == "" {
		return nil, apierr.NewValidationError(apierr.BadTokenFormat, "missing issuer")
	}
	if err := verifySignature(env, env.payload.Iss); err != nil {
		return nil, err
	}

	rootPubKeyHex, err := verifyAssociationChain(env.payload, 0)
	if err != nil {
		return nil, err
	}

	rootKeyBytes, err := hex.DecodeString(rootPubKeyHex)
	if err != nil {
		return nil, apierr.NewValidationError(apierr.SignatureInvalid, "malformed root public key")
	}
	signingPrincipal := principal.FromPublicKeyHex(rootKeyBytes)

	if signingPrincipal != requestedPrincipal {
		return nil, apierr.NewValidationError(apierr.PrincipalMismatch, "token does not authorize this principal")
	}

	if v.cfg.RequireCorrectHubURL {
		if !hubURLMatches(env.payload.HubURL, v.cfg.ServerName, v.cfg.ValidHubURLs) {
			return nil, apierr.NewValidationError(apierr.WrongHub, "token is not valid for this hub")
		}
	}

	if env.payload.Exp != nil && time.Now().Unix() >= *env.payload.Exp {
		return nil, apierr.NewValidationError(apierr.Expired, "token expired")
	}

	oldestValid, err := v.clock.Get(ctx, signingPrincipal)
	if err != nil {
		return nil, apierr.NewDriverError("revocation.Get", err)
	}
	if env.payload.Iat < oldestValid {
		return nil, apierr.NewValidationError(apierr.Revoked, "token has been revoked")
	}

	if v.cfg.Whitelist != nil {
		if _, ok := v.cfg.Whitelist[signingPrincipal]; !ok {
			return nil, apierr.NewValidationError(apierr.NotWhitelisted, "principal is not a whitelisted writer")
		}
	}

	return &VerifiedToken{
		Principal: signingPrincipal,
		Scopes:    ExtractScopes(env.payload.Scopes),
		Payload:   env.payload,
	}, nil
}

func extractBearer(authHeader string) (string, error) {
	if authHeader == "" {
		return "", apierr.NewValidationError(apierr.BadTokenFormat, "missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apierr.NewValidationError(apierr.BadTokenFormat, "Authorization header must be a Bearer token")
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", apierr.NewValidationError(apierr.BadTokenFormat, "empty bearer token")
	}
	return tok, nil
}

// verifyAssociationChain walks payload.AssociationToken (if present),
// verifying at each link that:
//   - the link's own signature verifies against its own iss,
//   - the link authorizes exactly the previous link's signer
//     (childToAssociate == previous iss),
//   - the link is unexpired.
//
// It returns the hex public key of the root of the chain (the final
// link's iss, or leaf.Iss itself when there is no association token).
func verifyAssociationChain(leaf Payload, depth int) (string, error) {
	if leaf.AssociationToken == "" {
		return leaf.Iss, nil
	}
	if depth >= maxAssociationChainDepth {
		return "", apierr.NewValidationError(apierr.AssociationInvalid, "association chain too deep")
	}

	linkEnv, err := decodeEnvelope(leaf.AssociationToken)
	if err != nil {
		return "", apierr.NewValidationError(apierr.AssociationInvalid, "malformed association token")
	}
	if linkEnv.payload.Iss == "" {
		return "", apierr.NewValidationError(apierr.AssociationInvalid, "association token missing issuer")
	}
	if err := verifySignature(linkEnv, linkEnv.payload.Iss); err != nil {
		return "", apierr.NewValidationError(apierr.AssociationInvalid, "association token signature invalid")
	}
	if linkEnv.payload.ChildToAssociate != leaf.Iss {
		return "", apierr.NewValidationError(apierr.AssociationInvalid, "association token does not authorize signer")
	}
	if linkEnv.payload.Exp != nil && time.Now().Unix() >= *linkEnv.payload.Exp {
		return "", apierr.NewValidationError(apierr.AssociationInvalid, "association token expired")
	}

	return verifyAssociationChain(linkEnv.payload, depth+1)
}

// hubURLMatches compares claimedURL against serverName (trailing "/"
// ignored, "http(s)://" scheme optional in the claim) and, failing
// that, against every entry in validHubURLs.
func hubURLMatches(claimedURL, serverName string, validHubURLs []string) bool {
	if claimedURL == "" {
		return false
	}
	norm := func(s string) string {
		s = strings.TrimSuffix(s, "/")
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		return s
	}
	c := norm(claimedURL)
	if c == norm(serverName) {
		return true
	}
	for _, u := range validHubURLs {
		if c == norm(u) {
			return true
		}
	}
	return false
}
