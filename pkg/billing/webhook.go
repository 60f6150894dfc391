package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mihaimyh/gopolar/pkg/billing/internal"
)

const (
	// defaultMaxBodyBytes limits webhook payloads to protect against memory
	// exhaustion.
	defaultMaxBodyBytes = 256 * 1024

	// payloadLogLimit is how much of the raw payload gets logged per event.
	payloadLogLimit = 200
)

// WebhookConfig holds WebhookHandler dependencies.
type WebhookConfig struct {
	// Reconciler applies parsed events to the store (required).
	Reconciler *Reconciler

	// Logger is optional; if nil, logging is silently dropped.
	Logger Logger

	// Metrics is optional; if nil, metrics are silently dropped.
	Metrics Metrics

	// MaxBodyBytes overrides the payload size limit. Zero uses the default.
	MaxBodyBytes int64
}

// WebhookHandler accepts Polar webhook deliveries on POST, dispatches by
// event type and acknowledges with {"success":true}. Unrecognized event
// types are logged and still acknowledged, so the provider does not retry
// events this system does not consume. Parse and handler failures respond
// 500 {"error":...} and rely on the provider's own retry policy.
type WebhookHandler struct {
	reconciler   *Reconciler
	logger       Logger
	metrics      Metrics
	maxBodyBytes int64
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(config WebhookConfig) (*WebhookHandler, error) {
	if config.Reconciler == nil {
		return nil, fmt.Errorf("%w: reconciler is required", ErrNotConfigured)
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &WebhookHandler{
		reconciler:   config.Reconciler,
		logger:       logger,
		metrics:      metrics,
		maxBodyBytes: maxBody,
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// TODO: verify the webhook-signature header once webhook secrets are
	// plumbed through WebhookConfig.

	body, err := internal.ReadBodyStrict(w, r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			h.metrics.RecordWebhookError("payload_too_large")
			_ = internal.WriteJSON(w, http.StatusRequestEntityTooLarge, errorResponse(err))
		} else {
			h.metrics.RecordWebhookError("invalid_payload")
			_ = internal.WriteJSON(w, http.StatusBadRequest, errorResponse(err))
		}
		return
	}

	event, err := ParseEvent(body)
	if err != nil {
		h.logger.Error("failed to parse webhook payload", Field{Key: "error", Value: err.Error()})
		h.metrics.RecordWebhookError("invalid_payload")
		_ = internal.WriteJSON(w, http.StatusInternalServerError, errorResponse(err))
		return
	}

	h.logger.Info("received polar webhook",
		Field{Key: "event", Value: event.Type},
		Field{Key: "data", Value: truncate(event.Data, payloadLogLimit)})

	if err := h.dispatch(r.Context(), event); err != nil {
		h.logger.Error("failed to process webhook",
			Field{Key: "event", Value: event.Type},
			Field{Key: "error", Value: err.Error()})
		h.metrics.RecordWebhookEvent(event.Type, "error")
		h.metrics.RecordWebhookError("processing_error")
		h.metrics.RecordWebhookProcessingDuration(event.Type, time.Since(startTime))
		_ = internal.WriteJSON(w, http.StatusInternalServerError, errorResponse(err))
		return
	}

	h.metrics.RecordWebhookEvent(event.Type, "success")
	h.metrics.RecordWebhookProcessingDuration(event.Type, time.Since(startTime))
	_ = internal.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *WebhookHandler) dispatch(ctx context.Context, event *Event) error {
	switch event.Type {
	case "order.created", "order.paid", "order.updated", "order.refunded":
		data, err := event.OrderData()
		if err != nil {
			return err
		}
		_, err = h.reconciler.ApplyOrder(ctx, data)
		return err

	case "subscription.created", "subscription.active", "subscription.canceled", "subscription.updated":
		data, err := event.SubscriptionData()
		if err != nil {
			return err
		}
		_, err = h.reconciler.ApplySubscription(ctx, data)
		return err

	case "checkout.created", "checkout.updated":
		data, err := event.CheckoutData()
		if err != nil {
			return err
		}
		_, err = h.reconciler.ApplyCheckout(ctx, data)
		return err

	case "customer.created", "customer.updated", "customer.deleted", "customer.state_changed":
		// No local persistence for customers.
		data, err := event.CustomerData()
		if err != nil {
			return err
		}
		h.logger.Info("customer event",
			Field{Key: "event", Value: event.Type},
			Field{Key: "customer_id", Value: data.ID})
		return nil

	case "refund.created":
		data, err := event.RefundData()
		if err != nil {
			return err
		}
		h.logger.Info("refund created", Field{Key: "refund_id", Value: data.ID})
		return nil

	default:
		h.logger.Info("unhandled webhook event", Field{Key: "event", Value: event.Type})
		return nil
	}
}

func errorResponse(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
