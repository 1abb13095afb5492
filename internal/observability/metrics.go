package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uwsgictl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the gateway.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uwsgictl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	uwsgiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uwsgictl",
			Subsystem: "uwsgi",
			Name:      "requests_total",
			Help:      "uwsgi requests sent to application servers.",
		},
		[]string{"backend", "method", "status", "outcome"},
	)
	uwsgiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uwsgictl",
			Subsystem: "uwsgi",
			Name:      "request_duration_seconds",
			Help:      "uwsgi request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "method", "status", "outcome"},
	)
	uwsgiPacketBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uwsgictl",
			Subsystem: "uwsgi",
			Name:      "packet_bytes",
			Help:      "Size of the header plus variable block.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 11),
		},
		[]string{"backend"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, uwsgiRequests, uwsgiDuration, uwsgiPacketBytes)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordUwsgiRequest counts one client request. status is 0 when no response arrived.
func RecordUwsgiRequest(backend, method string, status int, outcome string, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	uwsgiRequests.WithLabelValues(backend, method, statusLabel, outcome).Inc()
	uwsgiDuration.WithLabelValues(backend, method, statusLabel, outcome).Observe(duration.Seconds())
}

func ObservePacketBytes(backend string, n int) {
	RegisterMetrics()
	uwsgiPacketBytes.WithLabelValues(backend).Observe(float64(n))
}
