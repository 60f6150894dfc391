package prommetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordWebhookEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookEvent("order.created", "success")
	metrics.RecordWebhookEvent("order.created", "error")
	metrics.RecordWebhookEvent("subscription.updated", "success")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var webhookMetric *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_polar_webhook_events_total" {
			webhookMetric = m
			break
		}
	}
	if webhookMetric == nil {
		t.Fatal("Expected to find webhook events metric")
	}
	if len(webhookMetric.Metric) != 3 {
		t.Errorf("Expected 3 time series, got %d", len(webhookMetric.Metric))
	}
}

func TestRecordWebhookProcessingDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookProcessingDuration("order.created", 15*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected duration metrics to be recorded")
	}
}

func TestRecordReconcileOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordReconcileOutcome("order", "created")
	metrics.RecordReconcileOutcome("order", "updated")
	metrics.RecordReconcileOutcome("checkout", "skipped")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var outcomeMetric *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_polar_reconcile_outcomes_total" {
			outcomeMetric = m
			break
		}
	}
	if outcomeMetric == nil {
		t.Fatal("Expected to find reconcile outcomes metric")
	}
	if len(outcomeMetric.Metric) != 3 {
		t.Errorf("Expected 3 time series, got %d", len(outcomeMetric.Metric))
	}
}

func TestRecordOrderSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordOrderSync("success")
	metrics.RecordOrderSyncDuration(250 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) < 2 {
		t.Errorf("Expected sync counter and duration, got %d families", len(families))
	}
}

func TestRecordAPICall(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordAPICall("/v1/orders", "200")
	metrics.RecordAPICall("/v1/orders", "500")
	metrics.RecordAPICallDuration("/v1/orders", 30*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var callMetric *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_polar_api_calls_total" {
			callMetric = m
			break
		}
	}
	if callMetric == nil {
		t.Fatal("Expected to find API calls metric")
	}
	if len(callMetric.Metric) != 2 {
		t.Errorf("Expected 2 time series, got %d", len(callMetric.Metric))
	}
}

func TestMetrics_SatisfiesBillingInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ billing.Metrics = NewMetrics(reg, "test")
}
