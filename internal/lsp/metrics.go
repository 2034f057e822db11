package lsp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts and times the LSP methods a server handles. Each server
// registers its own collectors so several servers can share a process.
type Metrics struct {
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	diagnostics     prometheus.Counter
	openDocuments   prometheus.Gauge
	publishFailures prometheus.Counter
}

// NewMetrics registers the server collectors on reg. A nil reg creates a
// private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphql_lsp_requests_total",
			Help: "LSP requests and notifications handled, by method and outcome",
		}, []string{"method", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphql_lsp_request_duration_seconds",
			Help:    "LSP handler duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}, []string{"method"}),

		diagnostics: factory.NewCounter(prometheus.CounterOpts{
			Name: "graphql_lsp_diagnostics_published_total",
			Help: "Diagnostics sent to the client",
		}),

		openDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Name: "graphql_lsp_open_documents",
			Help: "Documents currently open in the session",
		}),

		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "graphql_lsp_publish_failures_total",
			Help: "publishDiagnostics notifications that could not be sent",
		}),
	}
}

// observe records one handled method.
func (m *Metrics) observe(method, outcome string, started time.Time) {
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
