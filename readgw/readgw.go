// Package readgw implements the read gateway of §4.7: unauthenticated
// GET/HEAD by (bucket, key). HEAD stats run under the keyed
// single-flight lock of package reqlock, keyed by object; concurrent
// lookups for the same object are not merged into one backend call.
package readgw

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
	"github.com/zaharov-labs/stackhub/metrics"
	"github.com/zaharov-labs/stackhub/reqlock"
)

// bucketPattern matches gorilla/mux's {bucket} segment against the
// alphabet named in §6: [A-Za-z0-9_-]+.
const bucketPattern = `[A-Za-z0-9_-]+`

// Gateway serves GET/HEAD /<bucket>/<key> against a single driver.
type Gateway struct {
	drv     driver.Driver
	log     *logrus.Logger
	metrics *metrics.Registry
	inFlight *reqlock.Set
	router  *mux.Router
}

func New(drv driver.Driver, log *logrus.Logger, reg *metrics.Registry) *Gateway {
	g := &Gateway{drv: drv, log: log, metrics: reg, inFlight: reqlock.New(), router: mux.NewRouter()}
	g.routes()
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) { g.router.ServeHTTP(w, r) }

func (g *Gateway) routes() {
	g.router.HandleFunc("/{bucket:"+bucketPattern+"}/{key:.+}", g.handleOptions).Methods(http.MethodOptions)
	g.router.HandleFunc("/{bucket:"+bucketPattern+"}/{key:.+}", g.handleGet).Methods(http.MethodGet)
	g.router.HandleFunc("/{bucket:"+bucketPattern+"}/{key:.+}", g.handleHead).Methods(http.MethodHead)
}

func (g *Gateway) handleOptions(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	bucket, key := parseBucketKey(r)

	fi, err := g.drv.PerformRead(r.Context(), bucket, key)
	status := g.respond(w, fi, err, true)
	g.metrics.Observe("read_get", status)
}

func (g *Gateway) handleHead(w http.ResponseWriter, r *http.Request) {
	bucket, key := parseBucketKey(r)

	// Run the stat while holding the (bucket,key) key. A caller that
	// finds the key already held performs its own stat instead of
	// waiting, so every concurrent HEAD still makes its own backend stat
	// call; the holder's result is not shared.
	var fi driver.FileInfo
	var statErr error
	acquired := g.inFlight.TryAcquire(bucket+"/"+key, func() {
		fi, statErr = g.drv.PerformStat(r.Context(), bucket, key)
	})
	if !acquired {
		fi, statErr = g.drv.PerformStat(r.Context(), bucket, key)
	}

	status := g.respond(w, fi, statErr, false)
	g.metrics.Observe("read_head", status)
}

func (g *Gateway) respond(w http.ResponseWriter, fi driver.FileInfo, err error, withBody bool) int {
	setCORSHeaders(w)
	if err != nil {
		if sc, ok := err.(apierr.StatusCoder); ok {
			w.WriteHeader(sc.StatusCode())
			return sc.StatusCode()
		}
		g.log.WithError(err).Error("read gateway driver error")
		w.WriteHeader(http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	if !fi.Exists {
		w.WriteHeader(http.StatusNotFound)
		return http.StatusNotFound
	}

	if fi.ReadStream != nil {
		defer fi.ReadStream.Close()
	}

	contentType := fi.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(fi.ContentLength, 10))
	if fi.ETag != "" {
		w.Header().Set("ETag", fi.ETag)
	}
	if !fi.LastModified.IsZero() {
		w.Header().Set("Last-Modified", fi.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if withBody && fi.ReadStream != nil {
		_, _ = io.Copy(w, fi.ReadStream)
	}
	return http.StatusOK
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Max-Age", "86400")
	// ETag is not CORS-safelisted by default; a cross-origin fetch()
	// client can't read it off the response unless it's exposed here
	// (§6).
	w.Header().Set("Access-Control-Expose-Headers", "ETag, Content-Type")
}

// parseBucketKey extracts bucket/key from the route, stripping a
// trailing slash from the key component (§4.7).
func parseBucketKey(r *http.Request) (string, string) {
	vars := mux.Vars(r)
	return vars["bucket"], strings.TrimSuffix(vars["key"], "/")
}

