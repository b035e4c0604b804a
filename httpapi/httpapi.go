// Package httpapi is the write hub's HTTP transport: it owns routing
// (github.com/gorilla/mux, grounded on the pack's nats-s3 gateway use
// of mux for a similar bucket/key-addressed REST surface) and is the
// single place typed errors from package apierr are translated into
// status codes and JSON bodies (§7: "handlers catch and translate at
// the HTTP boundary only").
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
	"github.com/zaharov-labs/stackhub/hub"
	"github.com/zaharov-labs/stackhub/metrics"
	"github.com/zaharov-labs/stackhub/principal"
	"github.com/zaharov-labs/stackhub/upload"
)

// Server adapts a *hub.Hub onto net/http.
type Server struct {
	hub     *hub.Hub
	log     *logrus.Logger
	metrics *metrics.Registry
	router  *mux.Router
}

// New builds a Server with every route of §6 registered. metrics may be
// nil to disable request counting (tests typically pass nil).
func New(h *hub.Hub, log *logrus.Logger, reg *metrics.Registry) *Server {
	s := &Server{hub: h, log: log, metrics: reg, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.router.HandleFunc("/hub_info", s.wrap("hub_info", s.handleHubInfo)).Methods(http.MethodGet)
	s.router.HandleFunc("/store/{principal}/{path:.+}", s.wrap("store", s.handleStore)).Methods(http.MethodPost)
	s.router.HandleFunc("/delete/{principal}/{path:.+}", s.wrap("delete", s.handleDelete)).Methods(http.MethodDelete)
	s.router.HandleFunc("/list-files/{principal}", s.wrap("list_files", s.handleListFiles)).Methods(http.MethodPost)
	s.router.HandleFunc("/revoke-all/{principal}", s.wrap("revoke_all", s.handleRevokeAll)).Methods(http.MethodPost)
}

// wrap runs handler and, on its return, records the outcome in metrics
// under route — a thin middleware rather than threading metrics calls
// through every handler body.
func (s *Server) wrap(route string, handler func(w http.ResponseWriter, r *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := handler(w, r)
		s.metrics.Observe(route, status)
	}
}

func (s *Server) handleHubInfo(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, s.hub.HubInfo())
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) int {
	vars := mux.Vars(r)
	principalID, path := vars["principal"], vars["path"]
	if !principal.Valid(principalID) {
		return s.writeError(w, apierr.NewValidationError(apierr.BadTokenFormat, "malformed principal"))
	}

	contentLength := upload.ParseContentLength(r.Header.Get("Content-Length"))

	url, err := s.hub.Store(r.Context(), hub.StoreRequest{
		Principal:     principalID,
		Path:          path,
		AuthHeader:    r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		ContentLength: contentLength,
		Body:          r.Body,
	})
	if err != nil {
		return s.writeError(w, err)
	}
	if s.metrics != nil && contentLength > 0 {
		s.metrics.ObserveUpload(contentLength)
	}
	return writeJSON(w, http.StatusAccepted, map[string]string{"publicURL": url})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) int {
	vars := mux.Vars(r)
	principalID, path := vars["principal"], vars["path"]
	if !principal.Valid(principalID) {
		return s.writeError(w, apierr.NewValidationError(apierr.BadTokenFormat, "malformed principal"))
	}
	if err := s.hub.Delete(r.Context(), r.Header.Get("Authorization"), principalID, path); err != nil {
		return s.writeError(w, err)
	}
	w.WriteHeader(http.StatusAccepted)
	return http.StatusAccepted
}

type listFilesRequest struct {
	Page *string `json:"page,omitempty"`
	Stat bool    `json:"stat,omitempty"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) int {
	principalID := mux.Vars(r)["principal"]
	if !principal.Valid(principalID) {
		return s.writeError(w, apierr.NewValidationError(apierr.BadTokenFormat, "malformed principal"))
	}

	var body listFilesRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return s.writeError(w, apierr.NewValidationError(apierr.BadTokenFormat, "malformed list-files body"))
		}
	}

	result, err := s.hub.List(r.Context(), r.Header.Get("Authorization"), principalID, body.Page, body.Stat)
	if err != nil {
		return s.writeError(w, err)
	}
	return writeJSON(w, http.StatusOK, newListResponse(result, body.Stat))
}

type revokeAllRequest struct {
	OldestValidTimestamp int64 `json:"oldestValidTimestamp"`
}

func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) int {
	principalID := mux.Vars(r)["principal"]
	if !principal.Valid(principalID) {
		return s.writeError(w, apierr.NewValidationError(apierr.BadTokenFormat, "malformed principal"))
	}

	var body revokeAllRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return s.writeError(w, apierr.NewValidationError(apierr.BadTokenFormat, "malformed revoke-all body"))
	}

	if err := s.hub.RevokeAll(r.Context(), r.Header.Get("Authorization"), principalID, body.OldestValidTimestamp); err != nil {
		return s.writeError(w, err)
	}
	w.WriteHeader(http.StatusAccepted)
	return http.StatusAccepted
}

// writeError translates err to the HTTP boundary per §7's taxonomy. A
// *apierr.DriverError logs the cause at Error and returns only its
// generic client message; a *apierr.ValidationError returns only its Msg
// (its Kind stays in the logs); every other typed error returns its own
// Error() text, which is already client-safe by construction.
func (s *Server) writeError(w http.ResponseWriter, err error) int {
	if de, ok := err.(*apierr.DriverError); ok {
		s.log.WithError(de.Cause).WithField("op", de.Op).Error("driver error")
		return writeJSON(w, de.StatusCode(), map[string]string{"error": de.ClientMessage()})
	}
	if ve, ok := err.(*apierr.ValidationError); ok {
		return writeJSON(w, ve.StatusCode(), map[string]string{"error": ve.Msg})
	}
	if sc, ok := err.(apierr.StatusCoder); ok {
		return writeJSON(w, sc.StatusCode(), map[string]string{"error": sc.Error()})
	}
	s.log.WithError(err).Error("unclassified internal error")
	return writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	return status
}

// entryJSON renders a driver.Entry either as a bare name (the common
// case) or as a {name,size,mtime,etag} object when the caller asked
// for stat'd entries (§3 ListPage), and as JSON null for the
// null-sentinel entry (SPEC_FULL.md §D).
type entryJSON struct {
	entry driver.Entry
	stat  bool
}

func (e entryJSON) MarshalJSON() ([]byte, error) {
	if e.entry.IsNull() {
		return []byte("null"), nil
	}
	if !e.stat {
		return json.Marshal(e.entry.Name)
	}
	return json.Marshal(struct {
		Name         string    `json:"name"`
		Size         int64     `json:"size"`
		LastModified time.Time `json:"mtime"`
		ETag         string    `json:"etag"`
	}{e.entry.Name, e.entry.Size, e.entry.LastModified, e.entry.ETag})
}

type listResponse struct {
	Entries []entryJSON `json:"entries"`
	Page    *string     `json:"page,omitempty"`
}

func newListResponse(r hub.ListResult, stat bool) listResponse {
	out := listResponse{Entries: make([]entryJSON, len(r.Entries)), Page: r.Page}
	for i, e := range r.Entries {
		out.Entries[i] = entryJSON{entry: e, stat: stat}
	}
	return out
}
