// Package metrics exposes the hub's Prometheus counters and
// histograms, mirroring the teacher's stats/target_stats.go role of
// exporting per-endpoint counters — generalized here to the hub's five
// HTTP operations plus the read gateway's GET/HEAD (SPEC_FULL.md §B).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric this repo exports, registered against
// a caller-supplied prometheus.Registerer so tests can use their own
// isolated registry instead of the global default one.
type Registry struct {
	Requests    *prometheus.CounterVec
	UploadBytes prometheus.Histogram
}

// New creates and registers a Registry against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackhub",
			Name:      "requests_total",
			Help:      "Count of hub and read-gateway requests by route and outcome.",
		}, []string{"route", "status"}),
		UploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stackhub",
			Name:      "upload_bytes",
			Help:      "Size in bytes of accepted uploads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}
	reg.MustRegister(r.Requests, r.UploadBytes)
	return r
}

// Observe records the outcome of a single request.
func (r *Registry) Observe(route string, status int) {
	if r == nil {
		return
	}
	r.Requests.WithLabelValues(route, statusClass(status)).Inc()
}

// ObserveUpload records the byte size of an accepted upload.
func (r *Registry) ObserveUpload(n int64) {
	if r == nil || n < 0 {
		return
	}
	r.UploadBytes.Observe(float64(n))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
