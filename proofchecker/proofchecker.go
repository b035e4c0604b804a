// Package proofchecker models the social-proof verification
// integration as an interface contract only (§1: "modeled only by its
// interface contract"). The upload pipeline calls Checker.CheckProofs
// before accepting a write; the full proof-service protocol lives
// outside this repo, but cmd/hubd wires a thin HTTP collaborator
// against it whenever ProofCheckerURL is configured (§A.3).
package proofchecker

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zaharov-labs/stackhub/apierr"
)

// Checker decides whether principal has presented enough social proof
// to be allowed to write.
type Checker interface {
	// CheckProofs returns nil if principal may proceed, or
	// *apierr.NotEnoughProofError (or any error) to reject the write.
	CheckProofs(ctx context.Context, principal string) error
}

// AllowAll is a Checker that never rejects a write — the default when
// no ProofCheckerURL is configured (§A.3 in SPEC_FULL.md).
type AllowAll struct{}

func (AllowAll) CheckProofs(context.Context, string) error { return nil }

// HTTPChecker delegates to an external proof service reachable at
// BaseURL: a GET against BaseURL/<principal> answering 200 allows the
// write, any other status rejects it with a NotEnoughProofError, and a
// transport failure rejects it with a DriverError.
// This is the minimal client shape the collaborator's interface
// contract requires; the service's own proof semantics live outside
// this repo.
type HTTPChecker struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPChecker builds an HTTPChecker against baseURL with a bounded
// request timeout.
func NewHTTPChecker(baseURL string) *HTTPChecker {
	return &HTTPChecker{BaseURL: baseURL, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (c *HTTPChecker) CheckProofs(ctx context.Context, principal string) error {
	endpoint := strings.TrimSuffix(c.BaseURL, "/") + "/" + url.PathEscape(principal)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apierr.NewDriverError("proofchecker.CheckProofs", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return apierr.NewDriverError("proofchecker.CheckProofs", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &apierr.NotEnoughProofError{Msg: "principal did not pass the configured proof check"}
	}
	return nil
}
