// Package metrics holds the Prometheus collectors of the payment flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	flowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "transitions_total",
			Help:      "Step transitions taken by payment flows.",
		},
		[]string{"from", "to"},
	)

	flowOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "outcomes_total",
			Help:      "Terminal results of transaction submissions.",
		},
		[]string{"status"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Calls made to the account, PIN and transaction endpoints.",
		},
		[]string{"call", "result"},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payflow",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"call"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payflow",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Payment sessions currently held by the API.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the payment API.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of payment API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		flowTransitions,
		flowOutcomes,
		backendRequests,
		backendDuration,
		sessionsActive,
		httpRequests,
		httpDuration,
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition counts a step change.
func RecordTransition(from, to string) {
	flowTransitions.WithLabelValues(from, to).Inc()
}

// RecordOutcome counts a terminal submission result.
func RecordOutcome(status string) {
	flowOutcomes.WithLabelValues(status).Inc()
}

// RecordBackendCall counts one backend call and observes its duration.
func RecordBackendCall(call, result string, d time.Duration) {
	backendRequests.WithLabelValues(call, result).Inc()
	backendDuration.WithLabelValues(call).Observe(d.Seconds())
}

// SetActiveSessions reports the number of live API sessions.
func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
