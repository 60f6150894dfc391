package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mihaimyh/gopolar/pkg/polar"
)

func newTestService(t *testing.T, srv *httptest.Server) (*Service, *fakeStore) {
	t.Helper()
	client, err := polar.NewClient(polar.Config{
		AccessToken: "test-token",
		BaseURL:     srv.URL,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	store := newFakeStore()
	service, err := NewService(ServiceConfig{Client: client, Store: store})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return service, store
}

func jsonHandler(v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestNewService_Validation(t *testing.T) {
	client, err := polar.NewClient(polar.Config{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := NewService(ServiceConfig{Store: newFakeStore()}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured for missing client, got %v", err)
	}
	if _, err := NewService(ServiceConfig{Client: client}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured for missing store, got %v", err)
	}
}

func TestCreateCheckout_MirrorsSessionLocally(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(map[string]interface{}{
		"id": "chk_1", "url": "https://polar.sh/c/chk_1", "status": "open",
	}))
	defer srv.Close()
	service, store := newTestService(t, srv)

	checkout, err := service.CreateCheckout(context.Background(), CreateCheckoutParams{
		ProductPriceID: "price_1",
		SuccessURL:     "https://example.com/done",
		CustomerEmail:  "a@b.com",
	})
	if err != nil {
		t.Fatalf("CreateCheckout failed: %v", err)
	}
	if checkout.ID != "chk_1" {
		t.Errorf("Unexpected checkout id %q", checkout.ID)
	}

	session, err := store.GetCheckoutSession(context.Background(), "chk_1")
	if err != nil {
		t.Fatalf("Expected local session: %v", err)
	}
	if session.Status != "open" || session.ProductID != "price_1" {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestGetCustomerState_RequiresAnID(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(map[string]interface{}{}))
	defer srv.Close()
	service, _ := newTestService(t, srv)

	if _, err := service.GetCustomerState(context.Background(), CustomerStateParams{}); err == nil {
		t.Fatal("Expected error when both ids are empty")
	}
}

func TestGetCustomerState_CustomerIDWins(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		jsonHandler(map[string]interface{}{"id": "cus_1"})(w, r)
	}))
	defer srv.Close()
	service, _ := newTestService(t, srv)

	_, err := service.GetCustomerState(context.Background(), CustomerStateParams{
		CustomerID: "cus_1",
		ExternalID: "user_1",
	})
	if err != nil {
		t.Fatalf("GetCustomerState failed: %v", err)
	}
	if gotPath != "/v1/customers/cus_1/state" {
		t.Errorf("Expected direct customer path, got %s", gotPath)
	}
}

func TestCancelSubscription_NoLocalRow_Warns(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(map[string]interface{}{
		"id": "sub_1", "status": "active", "cancel_at_period_end": true,
	}))
	defer srv.Close()
	service, _ := newTestService(t, srv)

	sub, err := service.CancelSubscriptionAtPeriodEnd(context.Background(), "sub_1")
	if err != nil {
		t.Fatalf("Missing local row must not fail the action: %v", err)
	}
	if !sub.CancelAtPeriodEnd {
		t.Error("Expected provider-side flag set")
	}
}

func TestReactivateSubscription_ClearsLocalFlag(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(map[string]interface{}{
		"id": "sub_1", "status": "active", "cancel_at_period_end": false,
	}))
	defer srv.Close()
	service, store := newTestService(t, srv)
	ctx := context.Background()

	if err := store.CreateSubscription(ctx, &Subscription{
		SubscriptionID: "sub_1", Status: "active", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Failed to seed subscription: %v", err)
	}
	if err := store.SetSubscriptionCancellation(ctx, "sub_1", true); err != nil {
		t.Fatalf("Failed to set cancellation: %v", err)
	}

	if _, err := service.ReactivateSubscription(ctx, "sub_1"); err != nil {
		t.Fatalf("ReactivateSubscription failed: %v", err)
	}

	sub, _ := store.GetSubscription(ctx, "sub_1")
	if sub.CancelAtPeriodEnd == nil || *sub.CancelAtPeriodEnd {
		t.Error("Expected cancellation flag cleared")
	}
}

func TestProviderFailure_WrapsErrProviderAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"boom"}`))
	}))
	defer srv.Close()
	service, _ := newTestService(t, srv)

	_, err := service.ListProducts(context.Background(), polar.ListProductsParams{})
	if !errors.Is(err, ErrProviderAPI) {
		t.Fatalf("Expected ErrProviderAPI, got %v", err)
	}
}
