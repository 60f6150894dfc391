package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestWebhookHandler(t *testing.T, store Store) *WebhookHandler {
	t.Helper()
	reconciler, err := NewReconciler(ReconcilerConfig{Store: store})
	if err != nil {
		t.Fatalf("Failed to create reconciler: %v", err)
	}
	handler, err := NewWebhookHandler(WebhookConfig{Reconciler: reconciler})
	if err != nil {
		t.Fatalf("Failed to create webhook handler: %v", err)
	}
	return handler
}

func postWebhook(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/polar", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestWebhook_OrderCreated_FullFlow(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)
	ctx := context.Background()

	if err := store.CreateCheckoutSession(ctx, &CheckoutSession{
		CheckoutID: "chk_1", ProductID: "prod_1", Status: "open", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Failed to seed checkout: %v", err)
	}

	w := postWebhook(handler, `{
		"type": "order.created",
		"data": {
			"id": "ord_1",
			"customer_id": "cus_1",
			"product_id": "prod_1",
			"amount": 2500,
			"currency": "usd",
			"status": "paid",
			"checkout_id": "chk_1"
		}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response["success"] != true {
		t.Errorf("Expected success=true, got %v", response)
	}

	order, err := store.GetOrder(ctx, "ord_1")
	if err != nil {
		t.Fatalf("Expected order to be persisted: %v", err)
	}
	if order.Amount != 2500 {
		t.Errorf("Expected amount 2500, got %d", order.Amount)
	}

	session, _ := store.GetCheckoutSession(ctx, "chk_1")
	if session.Status != "completed" {
		t.Errorf("Expected linked checkout completed, got %q", session.Status)
	}
}

func TestWebhook_SubscriptionCanceled(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)
	ctx := context.Background()

	if err := store.CreateSubscription(ctx, &Subscription{
		SubscriptionID: "sub_1", CustomerID: "cus_1", Status: "active", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Failed to seed subscription: %v", err)
	}

	w := postWebhook(handler, `{"type":"subscription.canceled","data":{"id":"sub_1","status":"canceled"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	sub, _ := store.GetSubscription(ctx, "sub_1")
	if sub.Status != "canceled" {
		t.Errorf("Expected status canceled, got %q", sub.Status)
	}
}

func TestWebhook_LegacyEventField(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	w := postWebhook(handler, `{"event":"order.paid","data":{"id":"ord_legacy","status":"paid"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if _, err := store.GetOrder(context.Background(), "ord_legacy"); err != nil {
		t.Fatalf("Expected order from legacy envelope: %v", err)
	}
}

func TestWebhook_CustomerEvent_AcknowledgedNotPersisted(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	w := postWebhook(handler, `{"type":"customer.created","data":{"id":"cus_1","email":"a@b.com"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestWebhook_UnknownEvent_Acknowledged(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	w := postWebhook(handler, `{"type":"benefit_grant.created","data":{"id":"bg_1"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Unknown events must be acknowledged, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("Expected success body, got %s", w.Body.String())
	}
}

func TestWebhook_MissingEventType(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	w := postWebhook(handler, `{"data":{"id":"ord_1"}}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if _, ok := response["error"]; !ok {
		t.Errorf("Expected error field, got %v", response)
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	w := postWebhook(handler, `{not json`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
}

func TestWebhook_PayloadMissingOrderID(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	w := postWebhook(handler, `{"type":"order.created","data":{"amount":100}}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	req := httptest.NewRequest("GET", "/webhooks/polar", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected status 405, got %d", w.Code)
	}
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	store := newFakeStore()
	reconciler, _ := NewReconciler(ReconcilerConfig{Store: store})
	handler, err := NewWebhookHandler(WebhookConfig{Reconciler: reconciler, MaxBodyBytes: 64})
	if err != nil {
		t.Fatalf("Failed to create webhook handler: %v", err)
	}

	w := postWebhook(handler, `{"type":"order.created","data":{"id":"`+strings.Repeat("x", 200)+`"}}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d", w.Code)
	}
}

func TestWebhook_RedeliveryKeepsSingleRow(t *testing.T) {
	store := newFakeStore()
	handler := newTestWebhookHandler(t, store)

	body := `{"type":"order.created","data":{"id":"ord_1","amount":100,"currency":"usd","status":"paid"}}`
	for i := 0; i < 3; i++ {
		if w := postWebhook(handler, body); w.Code != http.StatusOK {
			t.Fatalf("Delivery %d: expected 200, got %d", i, w.Code)
		}
	}

	orders, _ := store.ListOrders(context.Background(), 100)
	if len(orders) != 1 {
		t.Errorf("Expected one order after redeliveries, got %d", len(orders))
	}
}
