package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mechmon_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechmon_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	snapshotsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechmon_snapshots_stored_total",
			Help: "Snapshots accepted by the server, by kind",
		},
		[]string{"kind"},
	)

	documentsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mechmon_documents_stored_total",
			Help: "Statistics documents accepted by the server",
		},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechmon_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		requestDuration, requestsTotal,
		snapshotsStored, documentsStored,
		webhookDeliveries,
	)
}

// metricsMiddleware records request counts and latencies. The route pattern
// is used as the path label to keep cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rw.statusCode)
		requestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}
