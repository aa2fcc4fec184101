// Package metrics defines the Prometheus instrumentation shared across
// the relay, channels, and providers. All collectors live on a private
// registry so tests can create isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// ServiceName is the key under which the shared Metrics instance is
// registered in the core service registry.
const ServiceName = "metrics"

// Metrics holds all collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	// MessagesReceived counts inbound messages accepted by the relay,
	// labeled by channel name.
	MessagesReceived *prometheus.CounterVec

	// CompletionsTotal counts provider completions, labeled by provider
	// name and outcome ("ok" or "error").
	CompletionsTotal *prometheus.CounterVec

	// GenerationErrors counts provider failures by error class.
	GenerationErrors *prometheus.CounterVec

	// StreamFlushes counts message edits performed while streaming,
	// labeled by kind ("intermediate" or "final").
	StreamFlushes *prometheus.CounterVec

	// StreamFlushErrors counts non-benign edit failures while streaming.
	StreamFlushErrors prometheus.Counter

	// PlainTextFallbacks counts final flushes that had to retry without
	// markup after a parse rejection.
	PlainTextFallbacks prometheus.Counter

	// TurnDuration observes end-to-end turn latency in seconds.
	TurnDuration prometheus.Histogram

	// ActiveSessions tracks the number of live conversation sessions.
	ActiveSessions prometheus.GaugeFunc
}

// New creates a Metrics instance on a fresh private registry.
// sessionCount reports the current number of sessions; pass nil to
// register a gauge that always reads zero.
func New(sessionCount func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemgram",
			Name:      "messages_received_total",
			Help:      "Inbound messages accepted by the relay.",
		}, []string{"channel"}),
		CompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemgram",
			Name:      "completions_total",
			Help:      "Provider completion attempts by outcome.",
		}, []string{"provider", "outcome"}),
		GenerationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemgram",
			Name:      "generation_errors_total",
			Help:      "Provider failures by error class.",
		}, []string{"class"}),
		StreamFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemgram",
			Name:      "stream_flushes_total",
			Help:      "Message edits performed while streaming.",
		}, []string{"kind"}),
		StreamFlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gemgram",
			Name:      "stream_flush_errors_total",
			Help:      "Non-benign edit failures while streaming.",
		}),
		PlainTextFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gemgram",
			Name:      "plaintext_fallbacks_total",
			Help:      "Final flushes retried without markup.",
		}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gemgram",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end latency of a conversation turn.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}

	if sessionCount == nil {
		sessionCount = func() int { return 0 }
	}
	m.ActiveSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "gemgram",
		Name:      "active_sessions",
		Help:      "Number of live conversation sessions.",
	}, func() float64 { return float64(sessionCount()) })

	reg.MustRegister(
		m.MessagesReceived,
		m.CompletionsTotal,
		m.GenerationErrors,
		m.StreamFlushes,
		m.StreamFlushErrors,
		m.PlainTextFallbacks,
		m.TurnDuration,
		m.ActiveSessions,
	)

	return m
}

// Handler returns an HTTP handler exposing the private registry in the
// Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry's Gather for tests and the
// periodic report job.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
