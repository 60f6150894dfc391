package billing

import "time"

// Metrics defines the interface for tracking billing operations.
// All methods are optional - components should gracefully handle nil metrics
// by substituting NoopMetrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from Polar.
	// eventType: the provider event name (e.g. "order.paid")
	// status: "success" or "error"
	RecordWebhookEvent(eventType, status string)

	// RecordWebhookProcessingDuration records how long a webhook took to process.
	RecordWebhookProcessingDuration(eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: "invalid_payload", "payload_too_large", "processing_error"
	RecordWebhookError(errorType string)

	// RecordReconcileOutcome records the outcome of a reconciliation
	// (entity: "order", "subscription", "checkout"; outcome: "created",
	// "updated", "skipped").
	RecordReconcileOutcome(entity, outcome string)

	// RecordOrderSync records a bulk order sync run.
	// status: "success" or "error"
	RecordOrderSync(status string)

	// RecordOrderSyncDuration records how long a sync run took.
	RecordOrderSyncDuration(duration time.Duration)

	// RecordAPICall records an outbound call to the Polar API.
	// endpoint: the logical endpoint (e.g. "/v1/orders")
	// status: HTTP status code as string, or "error" for transport failures
	RecordAPICall(endpoint, status string)

	// RecordAPICallDuration records how long an outbound API call took.
	RecordAPICallDuration(endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_ string)                               {}
func (n *NoopMetrics) RecordReconcileOutcome(_, _ string)                        {}
func (n *NoopMetrics) RecordOrderSync(_ string)                                  {}
func (n *NoopMetrics) RecordOrderSyncDuration(_ time.Duration)                   {}
func (n *NoopMetrics) RecordAPICall(_, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_ string, _ time.Duration)           {}
