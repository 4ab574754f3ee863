package algorithm

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmeans_algorithm_requests_total",
			Help: "Total number of algorithm service requests",
		},
		[]string{"route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kmeans_algorithm_request_duration_seconds",
			Help:    "Latency of algorithm service requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	iterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmeans_algorithm_iterations_total",
			Help: "Total number of K-means rounds computed",
		},
		[]string{"mode"},
	)
)

// instrument records per-route request counts and latency
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
