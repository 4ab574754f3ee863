package server

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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmeansviz_http_requests_total",
			Help: "Total number of HTTP requests served by the operator surface",
		},
		[]string{"route", "status"},
	)

	operatorActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmeansviz_operator_actions_total",
			Help: "Operator commands by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kmeansviz_http_request_duration_seconds",
			Help:    "Latency of HTTP requests served by the operator surface",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// instrument records request counts and latency per route pattern
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// The scene page is framed by the index page
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")

		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Inline scripts are needed for htmx wiring and the echarts click handler
		csp := "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline' https://go-echarts.github.io https://cdn.jsdelivr.net https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"frame-src 'self'; " +
			"connect-src 'self';"
		w.Header().Set("Content-Security-Policy", csp)

		next.ServeHTTP(w, r)
	})
}

// noCache adds headers to prevent caching (useful for HTMX partials)
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		next.ServeHTTP(w, r)
	})
}
