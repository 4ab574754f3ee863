package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kmeansviz/internal/api"
)

var (
	serviceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kmeansviz_service_requests_total",
			Help: "Total number of requests issued to the algorithm service",
		},
		[]string{"op", "outcome"},
	)

	serviceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kmeansviz_service_request_duration_seconds",
			Help:    "Latency of requests issued to the algorithm service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	var svcErr *api.ServiceError
	switch {
	case err == nil:
	case errors.As(err, &svcErr):
		outcome = "service_error"
	default:
		outcome = "transport_error"
	}
	serviceRequestsTotal.WithLabelValues(op, outcome).Inc()
	serviceRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
