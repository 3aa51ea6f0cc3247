package cashier

import "time"

// Metrics defines the interface for tracking billing operations.
// All methods are optional - components should gracefully handle nil metrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from FastSpring.
	// eventType: the dot-delimited type (e.g. "subscription.activated")
	// status: "success", "error" or "unknown"
	RecordWebhookEvent(eventType, status string)

	// RecordWebhookProcessingDuration records how long a webhook batch took.
	RecordWebhookProcessingDuration(duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: e.g. "auth_failed", "invalid_payload", "handler_error"
	RecordWebhookError(errorType string)

	// RecordStateChange records a subscription state transition.
	RecordStateChange(fromState, toState string)

	// RecordAPICall records an API call to FastSpring.
	// endpoint: the logical endpoint (e.g. "/subscriptions")
	// status: HTTP status code as string
	RecordAPICall(endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _ string)                      {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_ time.Duration)     {}
func (n *NoopMetrics) RecordWebhookError(_ string)                         {}
func (n *NoopMetrics) RecordStateChange(_, _ string)                       {}
func (n *NoopMetrics) RecordAPICall(_, _ string)                           {}
func (n *NoopMetrics) RecordAPICallDuration(_ string, _ time.Duration)     {}
