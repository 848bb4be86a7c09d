// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "taskflow"

var (
	// Labels: route (mux pattern), status
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	// Labels: route
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Labels: route
	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		},
		[]string{"route"},
	)
)

// MetricsHandler serves the Prometheus exposition format
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
