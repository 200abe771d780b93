package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes recorded by the dispatcher.
const (
	RefreshSuccess     = "success"
	RefreshFailure     = "failure"
	RefreshUnavailable = "unavailable"
)

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	refresh  *prometheus.CounterVec
}

// NewMetrics registers the dispatcher collectors with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_api_requests_total",
				Help: "Total number of backend API requests",
			},
			[]string{"method", "route", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_api_request_duration_seconds",
				Help:    "Backend API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		refresh: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_auth_refresh_total",
				Help: "Token refresh attempts triggered by a 401, by outcome",
			},
			[]string{"outcome"},
		),
	}
}
