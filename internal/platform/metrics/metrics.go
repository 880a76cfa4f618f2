// internal/platform/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendhall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lendhall",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	OutboxDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendhall",
			Subsystem: "outbox",
			Name:      "dispatched_total",
			Help:      "Total number of outbox records delivered to the publisher.",
		},
	)

	OutboxFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendhall",
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Total number of failed publish attempts.",
		},
	)

	OverdueSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendhall",
			Subsystem: "loans",
			Name:      "overdue_flagged_total",
			Help:      "Total number of loans flagged overdue by the sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		HTTPRequests,
		HTTPDuration,
		OutboxDispatched,
		OutboxFailed,
		OverdueSwept,
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
