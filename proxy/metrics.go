package proxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts proxy requests by api and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_http_requests_total",
			Help: "Total number of explorer HTTP requests",
		},
		[]string{"api", "status"},
	)
	// RequestDuration is the latency of proxy requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_http_request_duration_seconds",
			Help:    "Explorer HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api"},
	)
	// QueryRejected counts states stopped before reaching the backend.
	QueryRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_query_rejected_total",
			Help: "Queries rejected by parsing or validation",
		},
		[]string{"reason"},
	)
)

// Middleware records request count and duration per api.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		api := apiLabel(r)
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RequestTotal.WithLabelValues(api, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(api).Observe(time.Since(start).Seconds())
	})
}

func apiLabel(r *http.Request) string {
	switch api := r.URL.Query().Get("api"); api {
	case "tables", "state", "query", "user":
		return api
	case "":
		return "ui"
	}
	return "other"
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
