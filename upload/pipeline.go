// Package upload implements the write pipeline of §4.5: the ordered
// steps between an authenticated, scope-checked request and a
// committed object, including the archival rename-before-write and the
// monitored pass-through that enforces the upload size ceiling
// concurrently with the driver write — grounded on the teacher's own
// golang.org/x/sync/errgroup use for running a transfer and its
// bookkeeping goroutine together and failing fast if either errors.
package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
	"github.com/zaharov-labs/stackhub/hubtoken"
	"github.com/zaharov-labs/stackhub/principal"
	"github.com/zaharov-labs/stackhub/proofchecker"
)

// Request bundles everything Store needs that isn't already
// resolved by the caller (the hub has already run auth verification and
// scope extraction by the time it calls Store — see hub.Store).
type Request struct {
	Principal     string
	Path          string
	ContentType   string // already defaulted by the caller if empty
	ContentLength int64  // -1 if unknown
	Body          io.Reader
}

// Pipeline runs the upload pipeline against a single storage driver.
type Pipeline struct {
	Driver                 driver.Driver
	ProofChecker           proofchecker.Checker
	MaxFileUploadSizeBytes int64
	// ReadURLPrefix is the hub's own public read-URL prefix; the
	// driver's native prefix is rewritten to this on return (§4.1).
	ReadURLPrefix string
}

// Store runs steps 5-10 of §4.5. The caller (hub.Store) is responsible
// for steps 1-4: revocation lookup, auth verification, content-type
// defaulting, and scope enforcement — those need the verifier and
// revocation clock, which this package does not depend on so that it
// stays testable against a bare driver.Driver.
func (p *Pipeline) Store(ctx context.Context, req Request, archival bool) (string, error) {
	if err := p.ProofChecker.CheckProofs(ctx, req.Principal); err != nil {
		return "", err
	}

	if req.ContentLength > 0 && req.ContentLength > p.MaxFileUploadSizeBytes {
		return "", &apierr.PayloadTooLargeError{Msg: "declared content-length exceeds the maximum allowed size"}
	}

	if archival {
		if err := p.archiveExisting(ctx, req.Principal, req.Path); err != nil {
			return "", err
		}
	}

	effectiveLimit := p.MaxFileUploadSizeBytes
	if req.ContentLength > 0 {
		effectiveLimit = req.ContentLength
	}
	mon := newMonitoredReader(req.Body, effectiveLimit)

	g, gctx := errgroup.WithContext(ctx)
	var readURL string
	g.Go(func() error {
		url, err := p.Driver.PerformWrite(gctx, driver.WriteInput{
			StorageTopLevel: req.Principal,
			Path:            req.Path,
			Stream:          mon,
			ContentType:     req.ContentType,
			ContentLength:   req.ContentLength,
		})
		if err != nil {
			if ferr := mon.terminalErr(); ferr != nil {
				return ferr
			}
			return apierr.NewDriverError("upload.PerformWrite", err)
		}
		readURL = url
		return nil
	})
	g.Go(func() error {
		// Awaits the pass-through reaching a terminal state (driven by
		// the PerformWrite goroutine's reads of mon above) and surfaces
		// its error, so a driver that silently stops reading early
		// never masks an overshoot.
		return mon.wait(gctx.Done())
	})

	if err := g.Wait(); err != nil {
		return "", err
	}

	return rewriteURL(readURL, p.Driver.GetReadURLPrefix(), p.ReadURLPrefix, req.Principal, req.Path), nil
}

// archiveExisting implements §4.5 step 7: rename the canonical path to
// a freshly minted historical name, swallowing DoesNotExist (expected
// on first write) while letting any other error abort the request.
func (p *Pipeline) archiveExisting(ctx context.Context, principalID, filePath string) error {
	historicalPath, err := HistoricalName(filePath, principal.RandSuffix)
	if err != nil {
		return apierr.NewDriverError("upload.archiveExisting.name", err)
	}
	err = p.Driver.PerformRename(ctx, principalID, filePath, historicalPath)
	if err == nil {
		return nil
	}
	if apierr.IsDoesNotExist(err) {
		return nil
	}
	return apierr.NewDriverError("upload.archiveExisting.rename", err)
}

// HistoricalName builds "<dir>/.history.<unixMillis>.<rand10>.<filename>"
// per §6. randSuffix is injected (rather than calling principal.RandSuffix
// directly) so the hub package's archival-delete tombstoning can share
// this exact naming scheme without a second copy of the format string.
func HistoricalName(filePath string, randSuffix func() (string, error)) (string, error) {
	suffix, err := randSuffix()
	if err != nil {
		return "", err
	}
	dir, file := path.Split(filePath)
	millis := time.Now().UnixMilli()
	name := fmt.Sprintf(".history.%d.%s.%s", millis, suffix, file)
	return dir + name, nil
}

// rewriteURL replaces a URL's leading driverPrefix with hubPrefix,
// idempotently: if the URL already starts with hubPrefix it is left
// alone (§4.1's "idempotence" requirement for the rewrite).
func rewriteURL(readURL, driverPrefix, hubPrefix, principalID, filePath string) string {
	if hubPrefix == "" || strings.HasPrefix(readURL, hubPrefix) {
		return readURL
	}
	if driverPrefix != "" && strings.HasPrefix(readURL, driverPrefix) {
		return strings.TrimSuffix(hubPrefix, "/") + "/" + strings.TrimPrefix(strings.TrimPrefix(readURL, driverPrefix), "/")
	}
	return strings.TrimSuffix(hubPrefix, "/") + "/" + principalID + "/" + filePath
}

// IsArchivalWrite is the hub's single source of truth for whether a
// request's scope set makes its write archival (§4.5 step 7); hub.Store
// calls this rather than re-deriving it from hubtoken.ScopeSet itself.
func IsArchivalWrite(scopes hubtoken.ScopeSet) bool { return scopes.IsArchival() }

// ParseContentLength parses an HTTP Content-Length header value into the
// declared length Request.ContentLength expects, returning -1 when
// absent, unparsable, or non-positive — per SPEC_FULL.md §D's
// content-length:0 finiteness decision, only a strictly positive length
// counts as known. httpapi.handleStore is this function's call site.
func ParseContentLength(header string) int64 {
	if header == "" {
		return -1
	}
	n, err := strconv.ParseInt(header, 10, 64)
	if err != nil || n <= 0 {
		return -1
	}
	return n
}
