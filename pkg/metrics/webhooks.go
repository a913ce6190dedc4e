package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records ingestion outcomes per payment provider.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by provider and pipeline outcome.",
	}, []string{"provider", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_handle_duration_seconds",
		Help:    "Duration of webhook handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	reg.MustRegister(outcomes, duration)
	return &WebhookMetrics{
		outcomes: outcomes,
		duration: duration,
	}
}

// IncOutcome increments the outcome counter for the named provider.
func (w *WebhookMetrics) IncOutcome(provider, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records handling duration for the named provider.
func (w *WebhookMetrics) ObserveDuration(provider string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
