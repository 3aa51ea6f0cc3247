package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// Metrics implements cashier.Metrics using Prometheus.
type Metrics struct {
	webhookEventsTotal        *prometheus.CounterVec
	webhookProcessingDuration prometheus.Histogram
	webhookErrorsTotal        *prometheus.CounterVec
	stateChangesTotal         *prometheus.CounterVec
	apiCallsTotal             *prometheus.CounterVec
	apiCallDuration           *prometheus.HistogramVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cashier",
			Name:      "webhook_events_total",
			Help:      "Total number of webhook events received from FastSpring.",
		}, []string{"event_type", "status"}),

		webhookProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cashier",
			Name:      "webhook_processing_duration_seconds",
			Help:      "Duration of webhook batch processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		webhookErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cashier",
			Name:      "webhook_errors_total",
			Help:      "Total number of webhook processing errors.",
		}, []string{"error_type"}),

		stateChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cashier",
			Name:      "subscription_state_changes_total",
			Help:      "Total number of subscription state transitions.",
		}, []string{"from_state", "to_state"}),

		apiCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cashier",
			Name:      "api_calls_total",
			Help:      "Total number of API calls to FastSpring.",
		}, []string{"endpoint", "status"}),

		apiCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cashier",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of API calls to FastSpring in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) RecordWebhookEvent(eventType, status string) {
	m.webhookEventsTotal.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) RecordWebhookProcessingDuration(duration time.Duration) {
	m.webhookProcessingDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordWebhookError(errorType string) {
	m.webhookErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) RecordStateChange(fromState, toState string) {
	m.stateChangesTotal.WithLabelValues(fromState, toState).Inc()
}

func (m *Metrics) RecordAPICall(endpoint, status string) {
	m.apiCallsTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) RecordAPICallDuration(endpoint string, duration time.Duration) {
	m.apiCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// DefaultMetrics returns a Metrics implementation using the default
// Prometheus registerer.
func DefaultMetrics(namespace string) cashier.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}

var _ cashier.Metrics = (*Metrics)(nil)
