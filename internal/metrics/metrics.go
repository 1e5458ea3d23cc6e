// README: Prometheus collectors for HTTP traffic, lifecycle transitions, matching and notifications.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelink_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wastelink_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelink_pickup_transitions_total",
			Help: "Pickup status transition attempts by target status, actor role and outcome",
		},
		[]string{"to", "role", "result"},
	)

	MatchingCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wastelink_matching_candidates",
			Help:    "Number of collector candidates returned per pickup",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	NotificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wastelink_notifications_failed_total",
			Help: "Best-effort notifications that failed to deliver",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TransitionsTotal,
		MatchingCandidates,
		NotificationsFailed,
	)
}

func RecordRequest(method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, status).Inc()
	RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
