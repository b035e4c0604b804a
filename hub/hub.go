// Package hub orchestrates the write-side request handlers of §4.5 and
// §4.6 atop the driver, verifier, revocation clock, and upload pipeline
// packages: it is the only place that sequences "look up revocation
// clock, verify token, check scope, delegate to the pipeline/driver"
// end to end. The HTTP transport (package httpapi) calls into this
// package and translates what comes back at the boundary; this package
// itself never touches net/http.
package hub

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
	"github.com/zaharov-labs/stackhub/hubtoken"
	"github.com/zaharov-labs/stackhub/principal"
	"github.com/zaharov-labs/stackhub/revocation"
	"github.com/zaharov-labs/stackhub/upload"
)

// historyMarker is the filename prefix that marks an archival copy;
// List hides entries carrying it from archival-scoped principals.
const historyMarker = ".history."

// Clock is the subset of *revocation.Clock the hub needs.
type Clock interface {
	Get(ctx context.Context, principal string) (int64, error)
	Set(ctx context.Context, principal string, ts int64) error
}

// Config carries the hub's static, per-deployment settings.
type Config struct {
	ServerName             string
	ReadURLPrefix          string
	RequireCorrectHubURL   bool
	ValidHubURLs           []string
	Whitelist              map[string]struct{}
	MaxFileUploadSizeBytes int64
	ListPageSize           int
}

// Hub wires together the verifier, revocation clock, driver, and upload
// pipeline into the five operations of §6.
type Hub struct {
	cfg      Config
	drv      driver.Driver
	verifier *hubtoken.Verifier
	clock    Clock
	pipeline *upload.Pipeline
	log      *logrus.Logger
}

func New(cfg Config, drv driver.Driver, verifier *hubtoken.Verifier, clock Clock, pipeline *upload.Pipeline, log *logrus.Logger) *Hub {
	return &Hub{cfg: cfg, drv: drv, verifier: verifier, clock: clock, pipeline: pipeline, log: log}
}

// verify runs §4.2's verification and logs the specific failure Kind at
// Warn while returning only the generic *apierr.ValidationError category
// to the caller, per §A.1.
func (h *Hub) verify(ctx context.Context, authHeader, principalID string) (*hubtoken.VerifiedToken, error) {
	tok, err := h.verifier.Verify(ctx, authHeader, principalID)
	if err != nil {
		if ve, ok := err.(*apierr.ValidationError); ok {
			h.log.WithFields(logrus.Fields{"principal": principalID, "kind": ve.Kind}).Warn("token rejected")
		}
		return nil, err
	}
	return tok, nil
}

// StoreRequest bundles a store call's HTTP-derived inputs.
type StoreRequest struct {
	Principal     string
	Path          string
	AuthHeader    string
	ContentType   string
	ContentLength int64 // -1 if absent/unparsable
	Body          io.Reader
}

// Store runs the full upload pipeline of §4.5, steps 1-10.
func (h *Hub) Store(ctx context.Context, req StoreRequest) (string, error) {
	if err := checkReservedName(req.Path); err != nil {
		return "", err
	}

	tok, err := h.verify(ctx, req.AuthHeader, req.Principal)
	if err != nil {
		return "", err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	archival := upload.IsArchivalWrite(tok.Scopes)
	if !tok.Scopes.AuthorizedWrite(req.Path) {
		return "", apierr.NewValidationError(apierr.ScopeDenied, "token scope does not authorize a write to this path")
	}

	url, err := h.pipeline.Store(ctx, upload.Request{
		Principal:     req.Principal,
		Path:          req.Path,
		ContentType:   contentType,
		ContentLength: req.ContentLength,
		Body:          req.Body,
	}, archival)
	if err != nil {
		return "", err
	}
	return url, nil
}

// Delete runs §4.6's delete handler: archival-scoped principals get a
// rename-to-tombstone instead of a hard delete.
func (h *Hub) Delete(ctx context.Context, authHeader, principalID, path string) error {
	if err := checkReservedName(path); err != nil {
		return err
	}

	tok, err := h.verify(ctx, authHeader, principalID)
	if err != nil {
		return err
	}
	if !tok.Scopes.AuthorizedDelete(path) {
		return apierr.NewValidationError(apierr.ScopeDenied, "token scope does not authorize deleting this path")
	}

	if tok.Scopes.IsArchival() {
		historicalPath, err := tombstoneName(path)
		if err != nil {
			return apierr.NewDriverError("hub.Delete.tombstoneName", err)
		}
		if err := h.drv.PerformRename(ctx, principalID, path, historicalPath); err != nil {
			if apierr.IsDoesNotExist(err) {
				return &apierr.DoesNotExistError{Path: path}
			}
			return apierr.NewDriverError("hub.Delete.rename", err)
		}
		return nil
	}

	if err := h.drv.PerformDelete(ctx, principalID, path); err != nil {
		if apierr.IsDoesNotExist(err) {
			return err
		}
		return apierr.NewDriverError("hub.Delete", err)
	}
	return nil
}

// ListResult is what the List handler returns; httpapi serializes it to
// the wire shape of §6 (POST /list-files/<principal>).
type ListResult struct {
	Entries []driver.Entry
	Page    *string
}

// List runs §4.6's list handler: no scope check beyond authentication
// (listing is an implicit capability of the principal), with archival
// history filtered out when the principal's scopes are archival, per
// the null-sentinel protocol decided in SPEC_FULL.md §D.
func (h *Hub) List(ctx context.Context, authHeader, principalID string, page *string, withStat bool) (ListResult, error) {
	tok, err := h.verify(ctx, authHeader, principalID)
	if err != nil {
		return ListResult{}, err
	}

	prefix := principalID + "/"
	var lp driver.ListPage
	if withStat {
		lp, err = h.drv.ListFilesStat(ctx, prefix, page)
	} else {
		lp, err = h.drv.ListFiles(ctx, prefix, page)
	}
	if err != nil {
		return ListResult{}, apierr.NewDriverError("hub.List", err)
	}

	if !tok.Scopes.IsArchival() {
		return ListResult{Entries: lp.Entries, Page: lp.Page}, nil
	}

	filtered := make([]driver.Entry, 0, len(lp.Entries))
	for _, e := range lp.Entries {
		if isHistorical(e.Name) {
			continue
		}
		filtered = append(filtered, e)
	}
	if len(filtered) == 0 && lp.Page != nil {
		filtered = append(filtered, driver.Entry{})
	}
	return ListResult{Entries: filtered, Page: lp.Page}, nil
}

// RevokeAll bumps the revocation clock for principalID to
// oldestValidTimestamp (§4.3, §6 POST /revoke-all). The caller must
// authenticate as the principal it is targeting — §3's "mutated only by
// an explicit authBump call from an authenticated principal targeting
// themselves."
func (h *Hub) RevokeAll(ctx context.Context, authHeader, principalID string, oldestValidTimestamp int64) error {
	if _, err := h.verify(ctx, authHeader, principalID); err != nil {
		return err
	}
	if err := h.clock.Set(ctx, principalID, oldestValidTimestamp); err != nil {
		return err
	}
	return nil
}

// Info is the payload of GET /hub_info.
type Info struct {
	ChallengeText     string `json:"challenge_text"`
	LatestAuthVersion string `json:"latest_auth_version"`
	ReadURLPrefix     string `json:"read_url_prefix"`
}

// HubInfo returns the unauthenticated liveness/capability document of
// §6.
func (h *Hub) HubInfo() Info {
	return Info{
		ChallengeText:     fmt.Sprintf("gaiahub|0|%s|hubStore|%d|%d", h.cfg.ServerName, 0, 0),
		LatestAuthVersion: "v1",
		ReadURLPrefix:     h.cfg.ReadURLPrefix,
	}
}

// checkReservedName rejects writes/deletes that target the reserved
// revocation-clock key from outside its own code path (§7
// ConflictingNameError).
func checkReservedName(p string) error {
	if p == revocation.AuthTimestampKey || strings.HasSuffix(p, "/"+revocation.AuthTimestampKey) {
		return &apierr.ConflictingNameError{Path: p}
	}
	return nil
}

// isHistorical reports whether name's filename component begins with
// ".history." anywhere along its path, per §3's ObjectPath definition
// ("paths beginning with .history. under any segment are reserved").
func isHistorical(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, historyMarker) {
			return true
		}
	}
	return false
}

// tombstoneName builds the same "<dir>/.history.<unixMillis>.<rand10>.<name>"
// shape the upload pipeline uses for archival writes (§6), reused here
// for archival deletes.
func tombstoneName(p string) (string, error) {
	return upload.HistoricalName(p, principal.RandSuffix)
}
