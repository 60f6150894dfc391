package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mihaimyh/gopolar/pkg/billing"
	"github.com/mihaimyh/gopolar/pkg/polar"
)

const maxRequestBodyBytes = 64 * 1024

// Handler provides HTTP endpoints for the billing API. Handlers are plain
// http.HandlerFunc methods so they can be registered with any router; path
// and entity ids travel as query parameters ("id", "customer_id") rather
// than router-specific path variables.
type Handler struct {
	config Config
}

// ListProducts returns the product catalog from Polar.
// Query parameters: limit.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.config.Service.ListProducts(r.Context(), polar.ListProductsParams{
		OrganizationID: h.config.OrganizationID,
		Limit:          queryLimit(r),
	})
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, ProductListResponse{
		Success:    true,
		Products:   list.Items,
		Pagination: list.Pagination,
	})
}

// GetProduct returns a single product. Query parameters: id (required).
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.handleError(w, r, fmt.Errorf("id is required"), http.StatusBadRequest)
		return
	}
	product, err := h.config.Service.GetProduct(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, ProductResponse{Success: true, Product: product})
}

// CreateCheckout opens a checkout session. The request body is a JSON
// billing.CreateCheckoutParams.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var params billing.CreateCheckoutParams
	if err := h.decodeBody(w, r, &params); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	if params.ProductPriceID == "" {
		h.handleError(w, r, fmt.Errorf("product_price_id is required"), http.StatusBadRequest)
		return
	}
	if params.SuccessURL == "" {
		h.handleError(w, r, fmt.Errorf("success_url is required"), http.StatusBadRequest)
		return
	}
	checkout, err := h.config.Service.CreateCheckout(r.Context(), params)
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, CheckoutResponse{Success: true, Checkout: checkout})
}

// GetCheckout returns a checkout session from Polar.
// Query parameters: id (required).
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.handleError(w, r, fmt.Errorf("id is required"), http.StatusBadRequest)
		return
	}
	checkout, err := h.config.Service.GetCheckout(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, CheckoutResponse{Success: true, Checkout: checkout})
}

// CreatePortalSession creates a pre-authenticated customer portal session.
// The request body is {"customer_id": "..."}.
func (h *Handler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var params struct {
		CustomerID string `json:"customer_id"`
	}
	if err := h.decodeBody(w, r, &params); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	if params.CustomerID == "" {
		h.handleError(w, r, fmt.Errorf("customer_id is required"), http.StatusBadRequest)
		return
	}
	session, err := h.config.Service.CreateCustomerPortalSession(r.Context(), params.CustomerID)
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, PortalSessionResponse{
		Success:   true,
		Token:     session.Token,
		PortalURL: session.CustomerPortalURL,
	})
}

// GetCustomerState returns a customer's subscriptions and granted benefits.
// Query parameters: customer_id or external_id (one required).
func (h *Handler) GetCustomerState(w http.ResponseWriter, r *http.Request) {
	params := billing.CustomerStateParams{
		CustomerID: r.URL.Query().Get("customer_id"),
		ExternalID: r.URL.Query().Get("external_id"),
	}
	if params.CustomerID == "" && params.ExternalID == "" {
		h.handleError(w, r, fmt.Errorf("customer_id or external_id is required"), http.StatusBadRequest)
		return
	}
	state, err := h.config.Service.GetCustomerState(r.Context(), params)
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, CustomerStateResponse{Success: true, State: state})
}

// ListSubscriptions lists provider-side subscriptions.
// Query parameters: customer_id, limit.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.config.Service.ListSubscriptions(r.Context(), polar.ListSubscriptionsParams{
		OrganizationID: h.config.OrganizationID,
		CustomerID:     r.URL.Query().Get("customer_id"),
		Limit:          queryLimit(r),
	})
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, SubscriptionListResponse{
		Success:       true,
		Subscriptions: list.Items,
		Pagination:    list.Pagination,
	})
}

// CancelSubscription flags a subscription to end at the current period
// boundary. The request body is {"subscription_id": "..."}.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.setCancellation(w, r, true)
}

// ReactivateSubscription clears a pending cancellation.
// The request body is {"subscription_id": "..."}.
func (h *Handler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	h.setCancellation(w, r, false)
}

func (h *Handler) setCancellation(w http.ResponseWriter, r *http.Request, cancel bool) {
	var params struct {
		SubscriptionID string `json:"subscription_id"`
	}
	if err := h.decodeBody(w, r, &params); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	if params.SubscriptionID == "" {
		h.handleError(w, r, fmt.Errorf("subscription_id is required"), http.StatusBadRequest)
		return
	}

	var sub *polar.Subscription
	var err error
	if cancel {
		sub, err = h.config.Service.CancelSubscriptionAtPeriodEnd(r.Context(), params.SubscriptionID)
	} else {
		sub, err = h.config.Service.ReactivateSubscription(r.Context(), params.SubscriptionID)
	}
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, SubscriptionResponse{Success: true, Subscription: sub})
}

// SyncOrders backfills local order records from the Polar API.
func (h *Handler) SyncOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.config.Service.SyncOrders(r.Context())
	if err != nil {
		h.handleError(w, r, err, statusFor(err))
		return
	}
	h.respond(w, SyncResponse{
		Success: true,
		Total:   result.Total,
		Synced:  result.Synced,
		Skipped: result.Skipped,
	})
}

// ListOrderHistory returns locally persisted orders, newest first.
// Query parameters: customer_id (optional), limit.
func (h *Handler) ListOrderHistory(w http.ResponseWriter, r *http.Request) {
	var orders []*billing.Order
	var err error
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		orders, err = h.config.Service.Store().ListOrdersByCustomer(r.Context(), customerID, queryLimit(r))
	} else {
		orders, err = h.config.Service.Store().ListOrders(r.Context(), queryLimit(r))
	}
	if err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []*billing.Order{}
	}
	h.respond(w, OrderHistoryResponse{Success: true, Orders: orders})
}

// ListSubscriptionHistory returns locally persisted subscriptions, newest
// first. Query parameters: customer_id (optional), limit.
func (h *Handler) ListSubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	var subs []*billing.Subscription
	var err error
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		subs, err = h.config.Service.Store().ListSubscriptionsByCustomer(r.Context(), customerID, queryLimit(r))
	} else {
		subs, err = h.config.Service.Store().ListSubscriptions(r.Context(), queryLimit(r))
	}
	if err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []*billing.Subscription{}
	}
	h.respond(w, SubscriptionHistoryResponse{Success: true, Subscriptions: subs})
}

// ListCheckoutHistory returns locally persisted checkout sessions, newest
// first. Query parameters: limit.
func (h *Handler) ListCheckoutHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.config.Service.Store().ListCheckoutSessions(r.Context(), queryLimit(r))
	if err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*billing.CheckoutSession{}
	}
	h.respond(w, CheckoutHistoryResponse{Success: true, Sessions: sessions})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Response already committed, nothing left to do
		_ = err
	}
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}

	h.config.Logger.Error("request failed",
		billing.Field{Key: "path", Value: r.URL.Path},
		billing.Field{Key: "error", Value: err.Error()})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encodeErr := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: err.Error()}); encodeErr != nil {
		_ = encodeErr
	}
}

// statusFor maps service errors to HTTP status codes. Provider 404s become
// 404s; everything else from the provider is a 502, local failures are 500s.
func statusFor(err error) int {
	var apiErr *polar.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	if errors.Is(err, billing.ErrProviderAPI) {
		return http.StatusBadGateway
	}
	if errors.Is(err, billing.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
